package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type HeartbeatService struct {
	heartbeatStore store.HeartbeatStore
	clock          clock.Clock
}

func NewHeartbeatService(hs store.HeartbeatStore, clk clock.Clock) *HeartbeatService {
	if clk == nil {
		clk = clock.Real()
	}
	return &HeartbeatService{heartbeatStore: hs, clock: clk}
}

// Record stores one heartbeat from an authenticated terminal. The kiosk
// treats a successful round trip as "online".
func (s *HeartbeatService) Record(ctx context.Context, term types.Terminal, req types.HeartbeatRequest) (types.HeartbeatResponse, error) {
	now := s.clock.Now().UTC()
	rec := store.HeartbeatRecord{ReceivedAt: now, Request: req}
	if err := s.heartbeatStore.AppendHeartbeat(ctx, term.ID, rec); err != nil {
		return types.HeartbeatResponse{}, err
	}

	return types.HeartbeatResponse{
		OK:         true,
		TerminalID: term.ID,
		ServerTime: now.Format(time.RFC3339Nano),
	}, nil
}
