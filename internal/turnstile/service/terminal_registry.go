package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// TerminalRegistry authenticates terminals against their stored secret
// hash and tracks when each was last seen.
type TerminalRegistry struct {
	store store.TerminalStore
	clock clock.Clock
}

func NewTerminalRegistry(st store.TerminalStore, clk clock.Clock) *TerminalRegistry {
	if clk == nil {
		clk = clock.Real()
	}
	return &TerminalRegistry{store: st, clock: clk}
}

// Authenticate returns the provisioned terminal for id when secret
// matches. Unknown, disabled and revoked terminals and wrong secrets all
// yield ErrUnauthorized.
func (r *TerminalRegistry) Authenticate(ctx context.Context, terminalID, secret string) (types.Terminal, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" || secret == "" {
		return types.Terminal{}, ErrUnauthorized
	}

	t, err := r.store.ProvisionedTerminal(ctx, terminalID)
	if errors.Is(err, store.ErrNotFound) {
		return types.Terminal{}, ErrUnauthorized
	}
	if err != nil {
		return types.Terminal{}, err
	}

	if err := bcrypt.CompareHashAndPassword(t.SecretHash, []byte(secret)); err != nil {
		return types.Terminal{}, ErrUnauthorized
	}
	return t, nil
}

func (r *TerminalRegistry) NoteSeen(ctx context.Context, terminalID string) error {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, terminalID, r.clock.Now().UTC())
}

// HashSecret produces the value stored in terminals.secret_hash.
func HashSecret(secret string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
}
