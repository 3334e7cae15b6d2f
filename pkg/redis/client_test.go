package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	values map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{values: map[string]string{}}
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	if val, ok := m.values[key]; ok {
		return redis.NewStringResult(val, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			delete(m.values, key)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func TestGetReportsAbsence(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	_, found, err := client.Get(ctx, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatal("expected missing key to report absent")
	}
}

func TestSetGetDelRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.StateKey("notification")

	if err := client.Set(ctx, key, `{"history":[]}`); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	val, found, err := client.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("get failed: val=%q found=%v err=%v", val, found, err)
	}
	if val != `{"history":[]}` {
		t.Fatalf("unexpected value %q", val)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, found, _ := client.Get(ctx, key); found {
		t.Fatal("expected key removed")
	}
}

func TestStateKeyBuilder(t *testing.T) {
	client := &Client{}
	if got := client.StateKey("iam"); got != "attrib:state:iam" {
		t.Fatalf("unexpected state key %s", got)
	}
	if got := client.StateKey("policy", "notification"); got != "attrib:state:policy:notification" {
		t.Fatalf("unexpected state key %s", got)
	}
}
