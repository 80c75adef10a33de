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

// AccessStore reads membership facts and appends access events. Every
// decision runs as one job on the writer so its reads, card binding and
// audit insert commit together.
type AccessStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAccessStore(db *sql.DB, writer *dbpkg.Worker) *AccessStore {
	return &AccessStore{db: db, writer: writer}
}

func (s *AccessStore) Snapshot(ctx context.Context, memberID string) (store.Snapshot, error) {
	return loadSnapshot(ctx, s.db, memberID)
}

func (s *AccessStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.AccessTx) error) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &accessTx{tx: tx})
	})
}

func loadSnapshot(ctx context.Context, q querier, memberID string) (store.Snapshot, error) {
	var (
		m         types.Member
		email     sql.NullString
		deleted   int
		deletedAt sql.NullInt64
		deletedBy sql.NullString
		reason    sql.NullString
	)
	err := q.QueryRowContext(ctx, `
SELECT member_id, tenant_id, branch_id, name, email,
       is_deleted, deleted_at_ms, deleted_by, deletion_reason
FROM members
WHERE member_id = ?;
`, memberID).Scan(&m.ID, &m.TenantID, &m.BranchID, &m.Name, &email,
		&deleted, &deletedAt, &deletedBy, &reason)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Snapshot{}, store.ErrNotFound
	}
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("Snapshot member: %w", err)
	}
	m.Email = email.String
	m.IsDeleted = deleted == 1
	m.DeletedAt = fromNullMs(deletedAt)
	m.DeletedBy = deletedBy.String
	m.DeletionReason = reason.String

	card, err := memberCard(ctx, q, m)
	if err != nil {
		return store.Snapshot{}, err
	}

	subs, err := memberSubscriptions(ctx, q, m.ID)
	if err != nil {
		return store.Snapshot{}, err
	}

	return store.Snapshot{Member: m, Card: card, Subscriptions: subs}, nil
}

// memberCard derives the member's card state: the bound card (ACTIVE
// preferred), a PENDING_CARD placeholder while an assignment is open,
// or nil.
func memberCard(ctx context.Context, q querier, m types.Member) (*types.Card, error) {
	c, err := scanCard(q.QueryRowContext(ctx, `
SELECT card_uid, tenant_id, branch_id, member_id, card_status, released_at_ms
FROM cards
WHERE member_id = ?
ORDER BY card_status = 'ACTIVE' DESC, card_uid
LIMIT 1;
`, m.ID))
	if err != nil {
		return nil, fmt.Errorf("Snapshot card: %w", err)
	}
	if c != nil {
		return c, nil
	}

	var one int
	err = q.QueryRowContext(ctx, `
SELECT 1 FROM card_assignments
WHERE member_id = ? AND completed_at_ms IS NULL
LIMIT 1;
`, m.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Snapshot pending assignment: %w", err)
	}
	return &types.Card{
		TenantID: m.TenantID,
		BranchID: m.BranchID,
		MemberID: m.ID,
		Status:   types.CardPending,
	}, nil
}

func memberSubscriptions(ctx context.Context, q querier, memberID string) ([]types.Subscription, error) {
	rows, err := q.QueryContext(ctx, `
SELECT subscription_id, member_id, branch_id, status,
       start_at_ms, end_at_ms, cancelled_at_ms, created_at_ms
FROM subscriptions
WHERE member_id = ?
ORDER BY created_at_ms;
`, memberID)
	if err != nil {
		return nil, fmt.Errorf("Snapshot subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []types.Subscription
	for rows.Next() {
		var (
			sub                       types.Subscription
			status                    string
			startMs, endMs, createdMs int64
			cancelled                 sql.NullInt64
		)
		if err := rows.Scan(&sub.ID, &sub.MemberID, &sub.BranchID, &status,
			&startMs, &endMs, &cancelled, &createdMs); err != nil {
			return nil, fmt.Errorf("Snapshot subscriptions scan: %w", err)
		}
		sub.Status = types.SubscriptionStatus(status)
		sub.StartDate = fromMs(startMs)
		sub.EndDate = fromMs(endMs)
		sub.CancelledAt = fromNullMs(cancelled)
		sub.CreatedAt = fromMs(createdMs)
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// scanCard returns nil, nil when the row is absent.
func scanCard(row *sql.Row) (*types.Card, error) {
	var (
		c        types.Card
		memberID sql.NullString
		status   string
		released sql.NullInt64
	)
	err := row.Scan(&c.UID, &c.TenantID, &c.BranchID, &memberID, &status, &released)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.MemberID = memberID.String
	c.Status = types.CardStatus(status)
	c.ReleasedAt = fromNullMs(released)
	return &c, nil
}

type accessTx struct {
	tx *sql.Tx
}

func (t *accessTx) Snapshot(ctx context.Context, memberID string) (store.Snapshot, error) {
	return loadSnapshot(ctx, t.tx, memberID)
}

func (t *accessTx) IsAdminCard(ctx context.Context, tenantID, uid string) (bool, error) {
	var one int
	err := t.tx.QueryRowContext(ctx, `
SELECT 1 FROM admin_cards WHERE tenant_id = ? AND card_uid = ?;
`, tenantID, uid).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsAdminCard: %w", err)
	}
	return true, nil
}

func (t *accessTx) CardByUID(ctx context.Context, uid string) (*types.Card, error) {
	c, err := scanCard(t.tx.QueryRowContext(ctx, `
SELECT card_uid, tenant_id, branch_id, member_id, card_status, released_at_ms
FROM cards
WHERE card_uid = ?;
`, uid))
	if err != nil {
		return nil, fmt.Errorf("CardByUID: %w", err)
	}
	return c, nil
}

func (t *accessTx) DailyPass(ctx context.Context, branchID, uid, day string) (*types.DailyPass, error) {
	var (
		p      types.DailyPass
		paidMs int64
	)
	err := t.tx.QueryRowContext(ctx, `
SELECT pass_id, tenant_id, branch_id, card_uid, valid_on, paid_at_ms
FROM daily_passes
WHERE branch_id = ? AND card_uid = ? AND valid_on = ?
ORDER BY paid_at_ms
LIMIT 1;
`, branchID, uid, day).Scan(&p.ID, &p.TenantID, &p.BranchID, &p.CardUID, &p.ValidOn, &paidMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DailyPass: %w", err)
	}
	p.PaidAt = fromMs(paidMs)
	return &p, nil
}

func (t *accessTx) OpenAssignment(ctx context.Context, terminalID string) (*types.CardAssignment, error) {
	a, err := t.scanAssignment(ctx, `
WHERE terminal_id = ? AND completed_at_ms IS NULL
ORDER BY created_at_ms, assignment_id
LIMIT 1;`, terminalID)
	if err != nil {
		return nil, fmt.Errorf("OpenAssignment: %w", err)
	}
	return a, nil
}

func (t *accessTx) NextQueuedAssignment(ctx context.Context, branchID string) (*types.CardAssignment, error) {
	a, err := t.scanAssignment(ctx, `
WHERE branch_id = ? AND terminal_id IS NULL AND expected_uid IS NULL
  AND completed_at_ms IS NULL
ORDER BY created_at_ms, assignment_id
LIMIT 1;`, branchID)
	if err != nil {
		return nil, fmt.Errorf("NextQueuedAssignment: %w", err)
	}
	return a, nil
}

func (t *accessTx) scanAssignment(ctx context.Context, where string, arg string) (*types.CardAssignment, error) {
	var (
		a          types.CardAssignment
		terminalID sql.NullString
		expected   sql.NullString
		createdMs  int64
	)
	err := t.tx.QueryRowContext(ctx, `
SELECT assignment_id, tenant_id, branch_id, member_id, terminal_id, expected_uid, created_at_ms
FROM card_assignments
`+where, arg).Scan(&a.ID, &a.TenantID, &a.BranchID, &a.MemberID, &terminalID, &expected, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.TerminalID = terminalID.String
	a.ExpectedUID = expected.String
	a.CreatedAt = fromMs(createdMs)
	return &a, nil
}

func (t *accessTx) BindCard(ctx context.Context, uid string, a types.CardAssignment, at time.Time) error {
	ms := at.UTC().UnixMilli()

	res, err := t.tx.ExecContext(ctx, `
UPDATE cards
SET member_id      = ?,
    card_status    = 'ACTIVE',
    released_at_ms = NULL,
    updated_at_ms  = ?
WHERE card_uid = ?;
`, a.MemberID, ms, uid)
	if err != nil {
		return fmt.Errorf("BindCard update card: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	if _, err := t.tx.ExecContext(ctx, `
UPDATE card_assignments
SET completed_at_ms = ?
WHERE assignment_id = ? AND completed_at_ms IS NULL;
`, ms, a.ID); err != nil {
		return fmt.Errorf("BindCard close assignment: %w", err)
	}
	return nil
}

func (t *accessTx) AppendEvent(ctx context.Context, rec store.AccessEventRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("AppendEvent: event id is required")
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}

	if _, err := t.tx.ExecContext(ctx, `
INSERT INTO access_events(
  event_id, card_uid, terminal_id, branch_id, tenant_id, member_id,
  result_code, message, occurred_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`, rec.ID, rec.CardUID, rec.TerminalID, rec.BranchID, rec.TenantID,
		toNullString(rec.MemberID), string(rec.Result), rec.Message,
		rec.OccurredAt.UTC().UnixMilli()); err != nil {
		return fmt.Errorf("AppendEvent insert: %w", err)
	}
	return nil
}
