package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type TerminalStore struct {
	mu        sync.RWMutex
	terminals map[string]types.Terminal
	seen      map[string]time.Time
}

// NewTerminalStore registers the given terminals as provisioned.
func NewTerminalStore(terminals ...types.Terminal) *TerminalStore {
	k := make(map[string]types.Terminal, len(terminals))
	for _, t := range terminals {
		id := strings.TrimSpace(t.ID)
		if id != "" {
			k[id] = t
		}
	}
	return &TerminalStore{
		terminals: k,
		seen:      make(map[string]time.Time),
	}
}

func (s *TerminalStore) ProvisionedTerminal(_ context.Context, terminalID string) (types.Terminal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.terminals[terminalID]
	if !ok {
		return types.Terminal{}, store.ErrNotFound
	}
	return t, nil
}

func (s *TerminalStore) MarkSeen(_ context.Context, terminalID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[terminalID] = t
	return nil
}

// LastSeen is a test-only helper.
func (s *TerminalStore) LastSeen(terminalID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.seen[terminalID]
	return t, ok
}
