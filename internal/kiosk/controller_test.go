package kiosk_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/kiosk"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

var t0 = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

const (
	debounce     = 2 * time.Second
	feedback     = 2500 * time.Millisecond
	dupFeedback  = 4 * time.Second
	adminSession = 5 * time.Minute
)

// fakeChecker answers from a per-uid table, defaulting to ALLOW.
type fakeChecker struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]types.CheckResponse
	err     error

	// gate, when set, blocks Check until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeChecker) Check(ctx context.Context, uid string) (types.CheckResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, uid)
	gate, entered, err := f.gate, f.entered, f.err
	resp, ok := f.answers[uid]
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return types.CheckResponse{}, err
	}
	if !ok {
		resp = types.CheckResponse{Result: types.ResultAllow, MemberName: "Ada"}
	}
	return resp, nil
}

func (f *fakeChecker) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type recordingDisplay struct {
	mu     sync.Mutex
	states []kiosk.State
}

func (d *recordingDisplay) Render(s kiosk.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, s)
}

type harness struct {
	logs    *bytes.Buffer
	clk     *clock.FakeClock
	checker *fakeChecker
	display *recordingDisplay
	ctrl    *kiosk.Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		logs:    &bytes.Buffer{},
		clk:     clock.Fake(t0),
		checker: &fakeChecker{answers: map[string]types.CheckResponse{}},
		display: &recordingDisplay{},
	}
	h.ctrl = kiosk.NewController(h.checker, h.display, kiosk.Config{
		Debounce:          debounce,
		Feedback:          feedback,
		DuplicateFeedback: dupFeedback,
		AdminSession:      adminSession,
		RequestTimeout:    time.Second,
		Clock:             h.clk,
		Logger:            log.New(h.logs, "", 0),
	})
	return h
}

func (h *harness) tap(raw string) kiosk.State {
	h.ctrl.Tap(context.Background(), raw)
	return h.ctrl.Snapshot()
}

func (h *harness) admin(uid string) {
	h.checker.mu.Lock()
	h.checker.answers[uid] = types.CheckResponse{Result: types.ResultSuperAdmin, Message: "admin session started"}
	h.checker.mu.Unlock()
}

// ── Tap cycle ────────────────────────────────────────────────────────────────

func TestTap_LogsNormalizationRules(t *testing.T) {
	h := newHarness(t)

	h.tap("12345678")
	if got := h.logs.String(); !strings.Contains(got, "tap uid=0012345678 rules=[fixed-width]") {
		t.Errorf("log = %q, want fixed-width rule", got)
	}

	h.logs.Reset()
	h.clk.Advance(debounce)
	h.tap("abc123")
	if got := h.logs.String(); !strings.Contains(got, "tap uid=ABC123 rules=[]") {
		t.Errorf("log = %q, want no rules for a non-numeric uid", got)
	}
}

func TestTap_AllowThenIdle(t *testing.T) {
	h := newHarness(t)

	s := h.tap("12345678")
	if s.Phase != kiosk.PhaseFeedback || s.Result != types.ResultAllow || s.MemberName != "Ada" {
		t.Fatalf("state = %+v", s)
	}
	if calls := h.checker.Calls(); len(calls) != 1 || calls[0] != "0012345678" {
		t.Fatalf("calls = %v, want normalized uid once", calls)
	}

	h.clk.Advance(feedback - time.Millisecond)
	if got := h.ctrl.Snapshot().Phase; got != kiosk.PhaseFeedback {
		t.Fatalf("phase before hold ends = %s", got)
	}
	h.clk.Advance(time.Millisecond)
	if s := h.ctrl.Snapshot(); s.Phase != kiosk.PhaseIdle || s.Result != "" {
		t.Errorf("after hold = %+v", s)
	}
}

func TestTap_ProcessingIsRendered(t *testing.T) {
	h := newHarness(t)
	h.tap("12345678")

	var sawProcessing bool
	for _, s := range h.display.states {
		if s.Phase == kiosk.PhaseProcessing && s.CardUID == "0012345678" {
			sawProcessing = true
		}
	}
	if !sawProcessing {
		t.Error("PROCESSING state was never rendered")
	}
}

func TestTap_BlankIgnored(t *testing.T) {
	h := newHarness(t)
	if s := h.tap("   "); s.Phase != kiosk.PhaseIdle {
		t.Errorf("phase = %s, want IDLE", s.Phase)
	}
	if n := len(h.checker.Calls()); n != 0 {
		t.Errorf("calls = %d", n)
	}
}

// ── Duplicate suppression ────────────────────────────────────────────────────

func TestTap_DuplicateWithinWindow(t *testing.T) {
	h := newHarness(t)

	h.tap("12345678")
	h.clk.Advance(500 * time.Millisecond)
	s := h.tap("0012345678")

	if s.Result != types.ResultIgnoredDuplicateTap {
		t.Fatalf("result = %s, want IGNORED_DUPLICATE_TAP", s.Result)
	}
	if n := len(h.checker.Calls()); n != 1 {
		t.Fatalf("server calls = %d, want 1", n)
	}

	// The duplicate screen is held longer than a normal result.
	h.clk.Advance(feedback)
	if got := h.ctrl.Snapshot().Phase; got != kiosk.PhaseFeedback {
		t.Errorf("phase after %s = %s, want FEEDBACK", feedback, got)
	}
	h.clk.Advance(dupFeedback - feedback)
	if got := h.ctrl.Snapshot().Phase; got != kiosk.PhaseIdle {
		t.Errorf("phase after duplicate hold = %s, want IDLE", got)
	}
}

func TestTap_DuplicateDoesNotExtendWindow(t *testing.T) {
	h := newHarness(t)

	h.tap("12345678")
	h.clk.Advance(1500 * time.Millisecond)
	h.tap("12345678")
	h.clk.Advance(500 * time.Millisecond)

	if s := h.tap("12345678"); s.Result != types.ResultAllow {
		t.Errorf("result = %s, want ALLOW once the window from the first tap ends", s.Result)
	}
	if n := len(h.checker.Calls()); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
}

func TestTap_DifferentCardNotDuplicate(t *testing.T) {
	h := newHarness(t)
	h.tap("12345678")
	if s := h.tap("23456789"); s.Result != types.ResultAllow {
		t.Errorf("result = %s", s.Result)
	}
	if n := len(h.checker.Calls()); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
}

func TestTap_DroppedWhileProcessing(t *testing.T) {
	h := newHarness(t)
	h.checker.gate = make(chan struct{})
	h.checker.entered = make(chan struct{}, 1)

	done := make(chan struct{})
	go func() {
		h.ctrl.Tap(context.Background(), "12345678")
		close(done)
	}()
	<-h.checker.entered

	if got := h.ctrl.Snapshot().Phase; got != kiosk.PhaseProcessing {
		t.Fatalf("phase = %s, want PROCESSING", got)
	}
	h.ctrl.Tap(context.Background(), "23456789")

	close(h.checker.gate)
	<-done

	if calls := h.checker.Calls(); len(calls) != 1 {
		t.Errorf("calls = %v, want the in-flight tap only", calls)
	}
}

// ── Failures ─────────────────────────────────────────────────────────────────

func TestTap_OfflineShortCircuits(t *testing.T) {
	h := newHarness(t)
	h.ctrl.SetOnline(false)

	s := h.tap("12345678")
	if s.Result != types.ResultError || s.Online {
		t.Fatalf("state = %+v", s)
	}
	if n := len(h.checker.Calls()); n != 0 {
		t.Fatalf("offline tap reached the server")
	}

	h.ctrl.SetOnline(true)
	if s := h.tap("12345678"); s.Result != types.ResultAllow {
		t.Errorf("after reconnect result = %s, want ALLOW", s.Result)
	}
}

func TestTap_ServerErrorAllowsImmediateRetry(t *testing.T) {
	h := newHarness(t)
	h.checker.err = errors.New("connection refused")

	if s := h.tap("12345678"); s.Result != types.ResultError {
		t.Fatalf("result = %s, want ERROR", s.Result)
	}

	h.checker.mu.Lock()
	h.checker.err = nil
	h.checker.mu.Unlock()

	if s := h.tap("12345678"); s.Result != types.ResultAllow {
		t.Errorf("retry result = %s, want ALLOW", s.Result)
	}
}

func TestTap_UnknownResultBecomesError(t *testing.T) {
	h := newHarness(t)
	h.checker.answers["0012345678"] = types.CheckResponse{Result: "MAYBE"}
	if s := h.tap("12345678"); s.Result != types.ResultError {
		t.Errorf("result = %s, want ERROR", s.Result)
	}
}

// ── Admin session ────────────────────────────────────────────────────────────

func TestAdmin_CountdownExpires(t *testing.T) {
	h := newHarness(t)
	h.admin("0099991234")

	s := h.tap("99991234")
	if s.Mode != kiosk.ModeAdmin || s.AdminRemaining != adminSession {
		t.Fatalf("state = %+v, want ADMIN with 5:00", s)
	}

	h.clk.Advance(299 * time.Second)
	if s := h.ctrl.Snapshot(); s.Mode != kiosk.ModeAdmin || s.AdminRemaining != time.Second {
		t.Fatalf("at 299s state = %+v", s)
	}
	h.clk.Advance(time.Second)
	if s := h.ctrl.Snapshot(); s.Mode != kiosk.ModeLocked || s.Phase != kiosk.PhaseIdle {
		t.Errorf("at 300s state = %+v, want LOCKED/IDLE", s)
	}
}

func TestAdmin_SurvivesTapCycles(t *testing.T) {
	h := newHarness(t)
	h.admin("0099991234")
	h.tap("99991234")

	h.clk.Advance(time.Minute)
	if s := h.tap("12345678"); s.Mode != kiosk.ModeAdmin || s.Result != types.ResultAllow {
		t.Fatalf("state = %+v", s)
	}
	h.clk.Advance(3 * time.Minute)
	if got := h.ctrl.Snapshot().AdminRemaining; got != time.Minute {
		t.Errorf("remaining = %s, want 1m (taps do not reset the countdown)", got)
	}
}

func TestAdmin_SecondAdminTapKeepsDeadline(t *testing.T) {
	h := newHarness(t)
	h.admin("0099991234")
	h.tap("99991234")

	h.clk.Advance(4 * time.Minute)
	h.tap("99991234")
	if got := h.ctrl.Snapshot().AdminRemaining; got != time.Minute {
		t.Fatalf("remaining = %s, want 1m", got)
	}

	h.clk.Advance(time.Minute)
	if got := h.ctrl.Snapshot().Mode; got != kiosk.ModeLocked {
		t.Errorf("mode = %s, want LOCKED at the original deadline", got)
	}
}

func TestAdmin_LockEndsSession(t *testing.T) {
	h := newHarness(t)
	h.admin("0099991234")
	h.tap("99991234")

	h.ctrl.Lock()
	if got := h.ctrl.Snapshot().Mode; got != kiosk.ModeLocked {
		t.Fatalf("mode = %s, want LOCKED", got)
	}

	// A new session after lock is not cut short by the first timer.
	h.clk.Advance(4 * time.Minute)
	h.tap("99991234")
	h.clk.Advance(time.Minute + time.Second)
	if got := h.ctrl.Snapshot().Mode; got != kiosk.ModeAdmin {
		t.Errorf("mode = %s, want ADMIN", got)
	}

	h.ctrl.Lock()
	h.ctrl.Lock()
	if got := h.ctrl.Snapshot().Mode; got != kiosk.ModeLocked {
		t.Errorf("mode = %s after double lock", got)
	}
}

// ── Reader input ─────────────────────────────────────────────────────────────

func TestInput_LinesBecomeTaps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.ctrl.Input(ctx, "1234")
	h.ctrl.Input(ctx, "5678\r\n")
	if calls := h.checker.Calls(); len(calls) != 1 || calls[0] != "0012345678" {
		t.Fatalf("calls = %v", calls)
	}

	// Stray partial input is cleared when feedback ends.
	h.ctrl.Input(ctx, "999")
	h.clk.Advance(feedback)
	h.ctrl.Input(ctx, "0000000042\n")

	calls := h.checker.Calls()
	if len(calls) != 2 || calls[1] != "0000000042" {
		t.Errorf("calls = %v", calls)
	}
}
