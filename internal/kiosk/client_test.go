package kiosk_test

import (
	"context"
	"io"
	"log"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/httpapi"
	"github.com/BrandonDHaskell/Turnstile/internal/kiosk"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store/memory"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// newAccessServer runs the real HTTP API on memory stores with one
// member holding card 0012345678.
func newAccessServer(t *testing.T) (*httptest.Server, *memory.AccessStore) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	clk := clock.Fake(t0)
	logger := log.New(io.Discard, "", 0)

	access := memory.NewAccessStore()
	access.PutMember(types.Member{ID: "m1", TenantID: "t1", BranchID: "b1", Name: "Ada"})
	access.PutCard(types.Card{UID: "0012345678", TenantID: "t1", BranchID: "b1", MemberID: "m1", Status: types.CardActive})
	access.AddSubscription(types.Subscription{ID: "s1", MemberID: "m1", Status: types.SubscriptionActive, EndDate: t0.AddDate(0, 1, 0)})

	reg := service.NewTerminalRegistry(memory.NewTerminalStore(types.Terminal{
		ID: "kiosk-1", TenantID: "t1", BranchID: "b1", SecretHash: hash,
	}), clk)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Registry:         reg,
		AccessService:    service.NewAccessService(reg, access, service.AccessConfig{Clock: clk, Logger: logger}),
		HeartbeatService: service.NewHeartbeatService(memory.NewHeartbeatStore(), clk),
		AuditService:     service.NewAuditService(access, clk, time.UTC),
		StatusService:    service.NewStatusService(access, clk),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, access
}

func TestClient_Check(t *testing.T) {
	ts, access := newAccessServer(t)
	c := kiosk.NewClient(ts.URL+"/", "kiosk-1", "s3cret")

	resp, err := c.Check(context.Background(), "0012345678")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Result != types.ResultAllow || resp.MemberName != "Ada" {
		t.Errorf("resp = %+v", resp)
	}
	if n := len(access.Events()); n != 1 {
		t.Errorf("events = %d, want 1", n)
	}
}

func TestClient_CheckUnauthorizedCarriesResult(t *testing.T) {
	ts, _ := newAccessServer(t)
	c := kiosk.NewClient(ts.URL, "kiosk-1", "wrong")

	resp, err := c.Check(context.Background(), "0012345678")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Result != types.ResultError {
		t.Errorf("result = %s, want ERROR", resp.Result)
	}
}

func TestClient_Heartbeat(t *testing.T) {
	ts, _ := newAccessServer(t)

	ok := kiosk.NewClient(ts.URL, "kiosk-1", "s3cret")
	resp, err := ok.Heartbeat(context.Background(), types.HeartbeatRequest{Sequence: 1})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if resp.TerminalID != "kiosk-1" {
		t.Errorf("terminal id = %q", resp.TerminalID)
	}

	bad := kiosk.NewClient(ts.URL, "kiosk-1", "wrong")
	if _, err := bad.Heartbeat(context.Background(), types.HeartbeatRequest{}); err == nil {
		t.Error("expected error for rejected credentials")
	}
}

func TestClient_Unreachable(t *testing.T) {
	ts, _ := newAccessServer(t)
	url := ts.URL
	ts.Close()

	c := kiosk.NewClient(url, "kiosk-1", "s3cret")
	if _, err := c.Check(context.Background(), "0012345678"); err == nil {
		t.Error("expected transport error")
	}
}

func TestController_EndToEnd(t *testing.T) {
	ts, access := newAccessServer(t)
	h := newHarness(t)
	ctrl := kiosk.NewController(kiosk.NewClient(ts.URL, "kiosk-1", "s3cret"), nil, kiosk.Config{
		Clock:  h.clk,
		Logger: log.New(io.Discard, "", 0),
	})

	ctrl.Tap(context.Background(), "12345678")
	ctrl.Tap(context.Background(), "12345678")

	if s := ctrl.Snapshot(); s.Result != types.ResultIgnoredDuplicateTap {
		t.Errorf("second tap = %s, want IGNORED_DUPLICATE_TAP", s.Result)
	}
	if n := len(access.Events()); n != 1 {
		t.Errorf("audit events = %d, want 1", n)
	}
}
