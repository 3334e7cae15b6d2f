package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/outcomely/attribution-engine/pkg/config"
	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
)

const (
	outcomesPath                 = "/outcomes"
	defaultRequestTimeout        = 30 * time.Second
	responseBodyReadLimit  int64 = 1024
)

var (
	errBaseURLRequired = errors.New("collector base URL is required")
	errAppIDRequired   = errors.New("collector app ID is required")
)

// Client delivers measured outcome events to the remote collector over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	deviceType int
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds a collector client from configuration.
func NewClient(cfg config.CollectorConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errAppIDRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		appID:      appID,
		deviceType: cfg.DeviceType,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// Send posts one outcome event to the collector. The returned error carries a
// transient or permanent delivery code so the dispatch worker can decide
// between retrying and dead-lettering.
func (c *Client) Send(ctx context.Context, payload json.RawMessage) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodePermanentDelivery, "collector client not configured")
	}

	body, err := c.envelope(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePermanentDelivery, err, "build outcome request body")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+outcomesPath, bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePermanentDelivery, err, "build outcome request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeTransientDelivery, err, "execute outcome request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	cause := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))

	if isRetryableStatus(resp.StatusCode) {
		return pkgerrors.Wrap(pkgerrors.CodeTransientDelivery, cause, "collector rejected outcome transiently")
	}
	return pkgerrors.Wrap(pkgerrors.CodePermanentDelivery, cause, "collector rejected outcome")
}

// envelope injects the application identity into the event payload.
func (c *Client) envelope(payload json.RawMessage) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, err
	}

	appID, err := json.Marshal(c.appID)
	if err != nil {
		return nil, err
	}
	deviceType, err := json.Marshal(c.deviceType)
	if err != nil {
		return nil, err
	}
	doc["app_id"] = appID
	doc["device_type"] = deviceType

	return json.Marshal(doc)
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}
