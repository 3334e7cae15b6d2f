package attribution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/outcomely/attribution-engine/pkg/errors"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

type fakeKV struct {
	values map[string]string
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, ok := f.values[key]
	return val, ok, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	return nil
}

func (f *fakeKV) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeKV) StateKey(parts ...string) string {
	return "attrib:state:" + strings.Join(parts, ":")
}

func testPolicies(limit int, window time.Duration) map[enums.Channel]Policy {
	policy := Policy{
		EnableDirect:       true,
		EnableIndirect:     true,
		EnableUnattributed: true,
		HistoryLimit:       limit,
		Window:             window,
	}
	return map[enums.Channel]Policy{
		enums.ChannelNotification: policy,
		enums.ChannelIAM:          policy,
	}
}

func mustStore(t *testing.T, kv KV, limit int) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), kv, testPolicies(limit, 24*time.Hour))
	if err != nil {
		t.Fatalf("building store: %v", err)
	}
	return store
}

func TestHistoryNeverExceedsLimit(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 3)

	base := time.Now()
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("N%d", i)
		if err := store.RecordSourceReceived(ctx, enums.ChannelNotification, id, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("record source: %v", err)
		}
	}

	history, err := store.History(ctx, enums.ChannelNotification)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected history bounded to 3, got %d", len(history))
	}
	for i, want := range []string{"N7", "N8", "N9"} {
		if history[i].ID != want {
			t.Fatalf("expected most recent entries, got %v", history)
		}
	}
}

func TestConsumeDirectIsOneShot(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 5)

	if err := store.RecordDirectOpen(ctx, enums.ChannelIAM, "M1", time.Now()); err != nil {
		t.Fatalf("record direct open: %v", err)
	}

	id, ok, err := store.ConsumeDirect(ctx, enums.ChannelIAM)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !ok || id != "M1" {
		t.Fatalf("expected to consume M1, got %q ok=%v", id, ok)
	}

	if _, ok, _ := store.ConsumeDirect(ctx, enums.ChannelIAM); ok {
		t.Fatal("direct open must be consumed exactly once")
	}
}

func TestNewerDirectOpenSupersedes(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 5)

	_ = store.RecordDirectOpen(ctx, enums.ChannelNotification, "N1", time.Now())
	_ = store.RecordDirectOpen(ctx, enums.ChannelNotification, "N2", time.Now())

	id, ok, _ := store.ConsumeDirect(ctx, enums.ChannelNotification)
	if !ok || id != "N2" {
		t.Fatalf("expected newest direct open, got %q", id)
	}
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	store := mustStore(t, kv, 5)

	_ = store.RecordSourceReceived(ctx, enums.ChannelNotification, "N1", time.Now())
	_ = store.RecordDirectOpen(ctx, enums.ChannelNotification, "N2", time.Now())

	reopened := mustStore(t, kv, 5)
	history, _ := reopened.History(ctx, enums.ChannelNotification)
	if len(history) != 1 || history[0].ID != "N1" {
		t.Fatalf("expected history to survive restart, got %v", history)
	}
	id, ok, _ := reopened.ConsumeDirect(ctx, enums.ChannelNotification)
	if !ok || id != "N2" {
		t.Fatalf("expected pending direct open to survive restart, got %q", id)
	}
}

func TestStorageFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	store := mustStore(t, kv, 5)

	kv.setErr = errors.New("redis down")
	err := store.RecordSourceReceived(ctx, enums.ChannelNotification, "N1", time.Now())
	if err == nil {
		t.Fatal("expected storage error")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeStorage {
		t.Fatalf("expected storage code, got %s", pkgerrors.CodeOf(err))
	}

	kv.setErr = nil
	history, _ := store.History(ctx, enums.ChannelNotification)
	if len(history) != 0 {
		t.Fatalf("failed mutation must not apply, got %v", history)
	}
}

func TestSetPolicyValidation(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 5)

	err := store.SetPolicy(ctx, enums.ChannelIAM, Policy{HistoryLimit: 0, Window: time.Hour})
	if err == nil {
		t.Fatal("expected validation error for zero history limit")
	}
	if pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %s", pkgerrors.CodeOf(err))
	}
}

func TestSetPolicyDoesNotRewriteHistory(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 5)

	for _, id := range []string{"N1", "N2", "N3"} {
		_ = store.RecordSourceReceived(ctx, enums.ChannelNotification, id, time.Now())
	}
	err := store.SetPolicy(ctx, enums.ChannelNotification, Policy{
		EnableIndirect: true,
		HistoryLimit:   1,
		Window:         time.Hour,
	})
	if err != nil {
		t.Fatalf("set policy: %v", err)
	}

	history, _ := store.History(ctx, enums.ChannelNotification)
	if len(history) != 3 {
		t.Fatalf("policy change must not trim stored history, got %v", history)
	}
}

func TestResetClearsStateKeepsPolicy(t *testing.T) {
	ctx := context.Background()
	store := mustStore(t, newFakeKV(), 5)

	_ = store.RecordSourceReceived(ctx, enums.ChannelIAM, "M1", time.Now())
	_ = store.RecordDirectOpen(ctx, enums.ChannelIAM, "M2", time.Now())

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	history, _ := store.History(ctx, enums.ChannelIAM)
	if len(history) != 0 {
		t.Fatal("expected history cleared on reset")
	}
	if _, ok, _ := store.ConsumeDirect(ctx, enums.ChannelIAM); ok {
		t.Fatal("expected direct open cleared on reset")
	}
	if got := store.Policy(enums.ChannelIAM); got.HistoryLimit != 5 {
		t.Fatalf("expected policy preserved across reset, got %+v", got)
	}
}
