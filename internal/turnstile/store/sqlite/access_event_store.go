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

const defaultEventLimit = 100

// AccessEventStore serves the audit log: listing, counting and the
// void/unvoid corrections. Events themselves are inserted by
// AccessStore inside the decision transaction.
type AccessEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessEventStore(db *sql.DB, writer *dbpkg.Worker) *AccessEventStore {
	return &AccessEventStore{db: db, writer: writer}
}

const eventColumns = `event_id, card_uid, terminal_id, branch_id, tenant_id, member_id,
       result_code, message, occurred_at_ms, voided_at_ms, void_reason, voided_by`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (store.AccessEventRecord, error) {
	var (
		rec        store.AccessEventRecord
		memberID   sql.NullString
		result     string
		message    sql.NullString
		occurredMs int64
		voidedAt   sql.NullInt64
		voidReason sql.NullString
		voidedBy   sql.NullString
	)
	if err := r.Scan(&rec.ID, &rec.CardUID, &rec.TerminalID, &rec.BranchID, &rec.TenantID,
		&memberID, &result, &message, &occurredMs, &voidedAt, &voidReason, &voidedBy); err != nil {
		return store.AccessEventRecord{}, err
	}
	rec.MemberID = memberID.String
	rec.Result = types.ResultCode(result)
	rec.Message = message.String
	rec.OccurredAt = fromMs(occurredMs)
	rec.VoidedAt = fromNullMs(voidedAt)
	rec.VoidReason = voidReason.String
	rec.VoidedBy = voidedBy.String
	return rec, nil
}

func (s *AccessEventStore) Event(ctx context.Context, id string) (store.AccessEventRecord, error) {
	return eventByID(ctx, s.db, id)
}

func eventByID(ctx context.Context, q querier, id string) (store.AccessEventRecord, error) {
	rec, err := scanEvent(q.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM access_events WHERE event_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccessEventRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccessEventRecord{}, fmt.Errorf("Event %s: %w", id, err)
	}
	return rec, nil
}

func (s *AccessEventStore) ListEvents(ctx context.Context, f store.EventFilter) ([]store.AccessEventRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.BranchID != "" {
		where = append(where, "branch_id = ?")
		args = append(args, f.BranchID)
	}
	if f.TerminalID != "" {
		where = append(where, "terminal_id = ?")
		args = append(args, f.TerminalID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}

	q := `SELECT ` + eventColumns + ` FROM access_events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY occurred_at_ms DESC, rowid DESC LIMIT ?;`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListEvents: %w", err)
	}
	defer rows.Close()

	var out []store.AccessEventRecord
	for rows.Next() {
		rec, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListEvents scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *AccessEventStore) ApplyCorrection(ctx context.Context, c store.Correction) (store.AccessEventRecord, error) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}

	var out store.AccessEventRecord
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rec, err := eventByID(ctx, tx, c.EventID)
		if err != nil {
			return err
		}

		switch c.Action {
		case store.CorrectionVoid:
			if rec.Voided() {
				out = rec
				return store.ErrAlreadyVoided
			}
			_, err = tx.ExecContext(ctx, `
UPDATE access_events
SET voided_at_ms = ?, void_reason = ?, voided_by = ?
WHERE event_id = ?;
`, c.At.UTC().UnixMilli(), toNullString(c.Reason), toNullString(c.Actor), c.EventID)
		case store.CorrectionUnvoid:
			if !rec.Voided() {
				out = rec
				return store.ErrNotVoided
			}
			_, err = tx.ExecContext(ctx, `
UPDATE access_events
SET voided_at_ms = NULL, void_reason = NULL, voided_by = NULL
WHERE event_id = ?;
`, c.EventID)
		default:
			return fmt.Errorf("ApplyCorrection: unknown action %q", c.Action)
		}
		if err != nil {
			return fmt.Errorf("ApplyCorrection update: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO access_event_corrections(event_id, action, reason, actor, at_ms)
VALUES (?, ?, ?, ?, ?);
`, c.EventID, string(c.Action), toNullString(c.Reason), toNullString(c.Actor),
			c.At.UTC().UnixMilli()); err != nil {
			return fmt.Errorf("ApplyCorrection log: %w", err)
		}

		out, err = eventByID(ctx, tx, c.EventID)
		return err
	})
	return out, err
}

func (s *AccessEventStore) Corrections(ctx context.Context, eventID string) ([]store.Correction, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, action, reason, actor, at_ms
FROM access_event_corrections
WHERE event_id = ?
ORDER BY id;
`, eventID)
	if err != nil {
		return nil, fmt.Errorf("Corrections: %w", err)
	}
	defer rows.Close()

	var out []store.Correction
	for rows.Next() {
		var (
			c      store.Correction
			action string
			reason sql.NullString
			actor  sql.NullString
			atMs   int64
		)
		if err := rows.Scan(&c.EventID, &action, &reason, &actor, &atMs); err != nil {
			return nil, fmt.Errorf("Corrections scan: %w", err)
		}
		c.Action = store.CorrectionAction(action)
		c.Reason = reason.String
		c.Actor = actor.String
		c.At = fromMs(atMs)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *AccessEventStore) CountEntries(ctx context.Context, branchID string, from, to time.Time, codes []types.ResultCode) (int, error) {
	if len(codes) == 0 {
		return 0, nil
	}

	args := []any{branchID, from.UTC().UnixMilli(), to.UTC().UnixMilli()}
	marks := make([]string, len(codes))
	for i, c := range codes {
		marks[i] = "?"
		args = append(args, string(c))
	}

	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM access_events
WHERE branch_id = ?
  AND occurred_at_ms >= ? AND occurred_at_ms < ?
  AND voided_at_ms IS NULL
  AND result_code IN (`+strings.Join(marks, ", ")+`);
`, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("CountEntries: %w", err)
	}
	return n, nil
}
