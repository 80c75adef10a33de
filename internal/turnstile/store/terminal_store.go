package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type TerminalStore interface {
	// ProvisionedTerminal returns ErrNotFound unless the terminal exists,
	// is enabled, commissioned and not revoked.
	ProvisionedTerminal(ctx context.Context, terminalID string) (types.Terminal, error)
	MarkSeen(ctx context.Context, terminalID string, t time.Time) error
}
