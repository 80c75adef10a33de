package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type HeartbeatRecord struct {
	ReceivedAt time.Time
	Request    types.HeartbeatRequest
}

type HeartbeatStore interface {
	AppendHeartbeat(ctx context.Context, terminalID string, rec HeartbeatRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
