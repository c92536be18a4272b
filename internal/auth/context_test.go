package auth

import (
	"context"
	"testing"

	"github.com/hashboard/hashboard/internal/entitlement"
)

func TestContextRoundTrip(t *testing.T) {
	ac := Context{
		AccountID: 42,
		Username:  "alice",
		SessionID: 7,
		Entitlement: entitlement.Resolution{
			Status: entitlement.StatusActive,
		},
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected context value")
	}
	if got.AccountID != 42 || got.Username != "alice" || got.SessionID != 7 {
		t.Errorf("got %+v, want %+v", got, ac)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no context value")
	}
}

func TestPremium(t *testing.T) {
	free := WithAuth(context.Background(), Context{
		Entitlement: entitlement.Resolution{Status: entitlement.StatusFree},
	})
	if Premium(free) {
		t.Error("free account reported premium")
	}

	active := WithAuth(context.Background(), Context{
		Entitlement: entitlement.Resolution{Status: entitlement.StatusActive},
	})
	if !Premium(active) {
		t.Error("active subscription not reported premium")
	}

	if Premium(context.Background()) {
		t.Error("anonymous context reported premium")
	}
}

func TestUsername(t *testing.T) {
	ctx := WithAuth(context.Background(), Context{Username: "alice"})
	if got := Username(ctx); got != "alice" {
		t.Errorf("Username = %q, want %q", got, "alice")
	}
	if got := Username(context.Background()); got != "" {
		t.Errorf("Username = %q, want empty", got)
	}
}
