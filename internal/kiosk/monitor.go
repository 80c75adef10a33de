package kiosk

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type Heartbeater interface {
	Heartbeat(ctx context.Context, req types.HeartbeatRequest) (types.HeartbeatResponse, error)
}

// OnlineSetter receives the monitor's connectivity verdicts.
type OnlineSetter interface {
	SetOnline(online bool)
}

type MonitorConfig struct {
	Interval        time.Duration
	Timeout         time.Duration
	FirmwareVersion string
	ReaderModel     string
	Clock           clock.Clock
	Logger          *log.Logger
}

// Monitor sends periodic heartbeats and reports reachability to the
// controller. A single failed heartbeat marks the terminal offline.
type Monitor struct {
	cfg    MonitorConfig
	hb     Heartbeater
	target OnlineSetter

	mu      sync.Mutex
	seq     uint64
	started time.Time
	online  bool
	known   bool
}

func NewMonitor(hb Heartbeater, target OnlineSetter, cfg MonitorConfig) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 4 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return &Monitor{cfg: cfg, hb: hb, target: target, started: cfg.Clock.Now()}
}

// Run beats once immediately, then every Interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.cfg.Clock.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.Beat(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Beat(ctx)
		}
	}
}

// Beat sends one heartbeat and reports whether the server answered.
func (m *Monitor) Beat(ctx context.Context) bool {
	m.mu.Lock()
	m.seq++
	req := types.HeartbeatRequest{
		Sequence:        m.seq,
		FirmwareVersion: m.cfg.FirmwareVersion,
		ReaderModel:     m.cfg.ReaderModel,
		UptimeSeconds:   uint64(m.cfg.Clock.Now().Sub(m.started) / time.Second),
	}
	m.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	_, err := m.hb.Heartbeat(reqCtx, req)
	cancel()

	online := err == nil
	m.mu.Lock()
	changed := !m.known || m.online != online
	m.online, m.known = online, true
	m.mu.Unlock()

	if changed && err != nil {
		m.cfg.Logger.Printf("heartbeat failed: %v", err)
	}
	m.target.SetOnline(online)
	return online
}
