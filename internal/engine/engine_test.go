package engine

import (
	"context"
	"testing"
	"time"

	"github.com/outcomely/attribution-engine/pkg/config"
	"github.com/outcomely/attribution-engine/pkg/enums"
)

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(context.Background(), Params{}); err == nil {
		t.Fatalf("expected error for empty params")
	}
	if _, err := New(context.Background(), Params{Config: &config.Config{}}); err == nil {
		t.Fatalf("expected error for missing logger")
	}
}

func TestDefaultPoliciesMapConfigPerChannel(t *testing.T) {
	cfg := config.AttributionConfig{
		NotificationDirect:       true,
		NotificationIndirect:     true,
		NotificationUnattributed: false,
		NotificationLimit:        10,
		NotificationWindow:       24 * time.Hour,

		IAMDirect:       false,
		IAMIndirect:     true,
		IAMUnattributed: true,
		IAMLimit:        5,
		IAMWindow:       time.Hour,
	}

	policies := defaultPolicies(cfg)

	notification := policies[enums.ChannelNotification]
	if !notification.EnableDirect || !notification.EnableIndirect || notification.EnableUnattributed {
		t.Fatalf("notification flags mapped wrong: %+v", notification)
	}
	if notification.HistoryLimit != 10 || notification.Window != 24*time.Hour {
		t.Fatalf("notification limits mapped wrong: %+v", notification)
	}

	iam := policies[enums.ChannelIAM]
	if iam.EnableDirect || !iam.EnableIndirect || !iam.EnableUnattributed {
		t.Fatalf("iam flags mapped wrong: %+v", iam)
	}
	if iam.HistoryLimit != 5 || iam.Window != time.Hour {
		t.Fatalf("iam limits mapped wrong: %+v", iam)
	}
}
