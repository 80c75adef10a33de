package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Turnstile/internal/db"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type TerminalStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewTerminalStore(db *sql.DB, writer *dbpkg.Worker) *TerminalStore {
	return &TerminalStore{db: db, writer: writer}
}

// ProvisionedTerminal loads a terminal that may serve traffic: enabled,
// commissioned and not revoked. Anything else reads as ErrNotFound so
// callers cannot tell a revoked terminal from an unknown one.
func (s *TerminalStore) ProvisionedTerminal(ctx context.Context, terminalID string) (types.Terminal, error) {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return types.Terminal{}, store.ErrNotFound
	}

	var (
		t            types.Terminal
		name         sql.NullString
		enabled      int
		commissioned sql.NullInt64
		revoked      sql.NullInt64
		mode         string
		tz           sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT t.terminal_id, t.tenant_id, t.branch_id, t.display_name, t.secret_hash,
       t.enabled, t.commissioned_at_ms, t.revoked_at_ms, b.assign_mode, b.timezone
FROM terminals t
JOIN branches b ON b.branch_id = t.branch_id
WHERE t.terminal_id = ?;
`, terminalID).Scan(&t.ID, &t.TenantID, &t.BranchID, &name, &t.SecretHash,
		&enabled, &commissioned, &revoked, &mode, &tz)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Terminal{}, store.ErrNotFound
	}
	if err != nil {
		return types.Terminal{}, fmt.Errorf("ProvisionedTerminal query: %w", err)
	}

	if enabled != 1 || !commissioned.Valid || revoked.Valid {
		return types.Terminal{}, store.ErrNotFound
	}
	t.Name = name.String
	t.AssignMode = types.ParseAssignMode(mode)
	t.Timezone = tz.String
	return t, nil
}

func (s *TerminalStore) MarkSeen(ctx context.Context, terminalID string, t time.Time) error {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
UPDATE terminals
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE terminal_id = ?;
`, ms, ms, terminalID); err != nil {
			return fmt.Errorf("MarkSeen: %w", err)
		}
		return nil
	})
}
