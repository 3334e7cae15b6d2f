package collector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/outcomely/attribution-engine/pkg/config"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
)

func testConfig(baseURL string) config.CollectorConfig {
	return config.CollectorConfig{
		BaseURL:        baseURL,
		AppID:          "app-123",
		DeviceType:     1,
		RequestTimeout: 2 * time.Second,
	}
}

func TestClientSendEnvelopesIdentity(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if r.URL.Path != "/outcomes" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	payload := json.RawMessage(`{"id":"purchase","weight":9.99}`)
	if err := client.Send(context.Background(), payload); err != nil {
		t.Fatalf("send: %v", err)
	}

	if received["id"] != "purchase" {
		t.Fatalf("payload id not forwarded: %v", received["id"])
	}
	if received["app_id"] != "app-123" {
		t.Fatalf("app_id not injected: %v", received["app_id"])
	}
	if received["device_type"] != float64(1) {
		t.Fatalf("device_type not injected: %v", received["device_type"])
	}
}

func TestClientSendClassifiesStatusCodes(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		retryable bool
	}{
		{name: "server error", status: http.StatusInternalServerError, retryable: true},
		{name: "bad gateway", status: http.StatusBadGateway, retryable: true},
		{name: "too many requests", status: http.StatusTooManyRequests, retryable: true},
		{name: "request timeout", status: http.StatusRequestTimeout, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "unauthorized", status: http.StatusUnauthorized, retryable: false},
		{name: "not found", status: http.StatusNotFound, retryable: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL))
			if err != nil {
				t.Fatalf("new client: %v", err)
			}

			sendErr := client.Send(context.Background(), json.RawMessage(`{"id":"signup"}`))
			if sendErr == nil {
				t.Fatalf("expected error for status %d", tc.status)
			}
			if got := pkgerrors.IsRetryable(sendErr); got != tc.retryable {
				t.Fatalf("status %d: retryable = %v, expected %v", tc.status, got, tc.retryable)
			}
		})
	}
}

func TestClientSendNetworkFailureIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	sendErr := client.Send(context.Background(), json.RawMessage(`{"id":"signup"}`))
	if sendErr == nil {
		t.Fatalf("expected network error")
	}
	if !pkgerrors.IsRetryable(sendErr) {
		t.Fatalf("network failures should be retryable")
	}
}

func TestClientSendMalformedPayloadIsPermanent(t *testing.T) {
	client, err := NewClient(testConfig("http://collector.invalid"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	sendErr := client.Send(context.Background(), json.RawMessage(`not-json`))
	if sendErr == nil {
		t.Fatalf("expected error for malformed payload")
	}
	if pkgerrors.IsRetryable(sendErr) {
		t.Fatalf("malformed payloads should not be retried")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(config.CollectorConfig{AppID: "app"}); err == nil {
		t.Fatalf("expected error for missing base URL")
	}
	if _, err := NewClient(config.CollectorConfig{BaseURL: "http://collector.invalid"}); err == nil {
		t.Fatalf("expected error for missing app ID")
	}
}
