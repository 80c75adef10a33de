package kiosk_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/kiosk"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type fakeHeartbeater struct {
	mu   sync.Mutex
	err  error
	reqs []types.HeartbeatRequest
	sent chan struct{}
}

func (f *fakeHeartbeater) Heartbeat(_ context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	err, sent := f.err, f.sent
	f.mu.Unlock()
	if sent != nil {
		sent <- struct{}{}
	}
	if err != nil {
		return types.HeartbeatResponse{}, err
	}
	return types.HeartbeatResponse{OK: true}, nil
}

func (f *fakeHeartbeater) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type onlineRecorder struct {
	mu   sync.Mutex
	seen []bool
}

func (r *onlineRecorder) SetOnline(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, v)
}

func (r *onlineRecorder) last() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[len(r.seen)-1]
}

func TestMonitor_BeatTogglesOnline(t *testing.T) {
	clk := clock.Fake(t0)
	hb := &fakeHeartbeater{}
	rec := &onlineRecorder{}
	m := kiosk.NewMonitor(hb, rec, kiosk.MonitorConfig{Clock: clk, FirmwareVersion: "1.2.0"})

	if !m.Beat(context.Background()) || !rec.last() {
		t.Fatal("expected online")
	}

	hb.setErr(errors.New("dial tcp: connection refused"))
	clk.Advance(90 * time.Second)
	if m.Beat(context.Background()) || rec.last() {
		t.Fatal("expected offline")
	}

	hb.setErr(nil)
	if !m.Beat(context.Background()) || !rec.last() {
		t.Fatal("expected online again")
	}

	if hb.reqs[1].Sequence != 2 || hb.reqs[1].UptimeSeconds != 90 || hb.reqs[1].FirmwareVersion != "1.2.0" {
		t.Errorf("second heartbeat = %+v", hb.reqs[1])
	}
}

func TestMonitor_DrivesController(t *testing.T) {
	h := newHarness(t)
	hb := &fakeHeartbeater{err: errors.New("timeout")}
	m := kiosk.NewMonitor(hb, h.ctrl, kiosk.MonitorConfig{Clock: h.clk})

	m.Beat(context.Background())
	if s := h.tap("12345678"); s.Result != types.ResultError {
		t.Fatalf("offline tap = %s, want ERROR", s.Result)
	}
	if n := len(h.checker.Calls()); n != 0 {
		t.Fatalf("offline tap reached the server")
	}
}

func TestMonitor_RunBeatsOnTicks(t *testing.T) {
	clk := clock.Fake(t0)
	hb := &fakeHeartbeater{sent: make(chan struct{}, 4)}
	m := kiosk.NewMonitor(hb, &onlineRecorder{}, kiosk.MonitorConfig{Clock: clk, Interval: 10 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	<-hb.sent
	clk.Advance(10 * time.Second)
	select {
	case <-hb.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("no heartbeat after tick")
	}

	cancel()
	<-done
}
