package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Dev fixture ids. The kiosk defaults point at these.
const (
	DevTenantID       = "tenant_dev"
	DevBranchID       = "branch_main"
	DevTerminalID     = "kiosk-001"
	DevTerminalSecret = "dev-secret"
)

type SeedDevOptions struct {
	Location *time.Location // branch zone; daily passes are seeded for today here
	Now      time.Time
}

type seedMember struct {
	id, name, card string
	subStatus      string
	endIn          time.Duration
}

// SeedDev inserts one branch, one terminal, an admin card and a few
// members covering the common decision outcomes. Rows that already
// exist are left alone, so it is safe to run at every dev start.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	if opt.Now.IsZero() {
		opt.Now = time.Now()
	}
	now := opt.Now.UTC().UnixMilli()

	hash, err := bcrypt.GenerateFromPassword([]byte(DevTerminalSecret), bcrypt.MinCost)
	if err != nil {
		return fmt.Errorf("hash dev secret: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO branches(branch_id, tenant_id, name, timezone, assign_mode, created_at_ms)
VALUES (?, ?, 'Main Gym', ?, 'manual', ?);`,
		DevBranchID, DevTenantID, opt.Location.String(), now); err != nil {
		return fmt.Errorf("seed branch: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO terminals(
  terminal_id, tenant_id, branch_id, display_name, secret_hash,
  enabled, commissioned_at_ms, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, 'Front Desk', ?, 1, ?, ?, ?)
ON CONFLICT(terminal_id) DO UPDATE SET
  enabled = 1,
  commissioned_at_ms = COALESCE(terminals.commissioned_at_ms, excluded.commissioned_at_ms),
  updated_at_ms = excluded.updated_at_ms;`,
		DevTerminalID, DevTenantID, DevBranchID, hash, now, now, now); err != nil {
		return fmt.Errorf("seed terminal %s: %w", DevTerminalID, err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO admin_cards(tenant_id, card_uid, label) VALUES (?, '0099991234', 'Owner');`,
		DevTenantID); err != nil {
		return fmt.Errorf("seed admin card: %w", err)
	}

	day := 24 * time.Hour
	members := []seedMember{
		{id: "m_active", name: "Alex Active", card: "0012345678", subStatus: "ACTIVE", endIn: 90 * day},
		{id: "m_expiring", name: "Erin Expiring", card: "0023456789", subStatus: "ACTIVE", endIn: 3 * day},
		{id: "m_expired", name: "Sam Lapsed", card: "0034567890", subStatus: "ACTIVE", endIn: -5 * day},
		{id: "m_cancelled", name: "Casey Cancelled", card: "0045678901", subStatus: "CANCELLED", endIn: 30 * day},
	}
	for _, m := range members {
		if err := seedMemberRows(ctx, tx, m, opt.Now, now); err != nil {
			return err
		}
	}

	// Unbound inventory card for assignment demos.
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO cards(card_uid, tenant_id, branch_id, member_id, card_status, created_at_ms, updated_at_ms)
VALUES ('0056789012', ?, ?, NULL, 'ACTIVE', ?, ?);`,
		DevTenantID, DevBranchID, now, now); err != nil {
		return fmt.Errorf("seed inventory card: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO daily_passes(pass_id, tenant_id, branch_id, card_uid, valid_on, paid_at_ms)
VALUES (?, ?, ?, '0067890123', ?, ?);`,
		"pass_"+opt.Now.In(opt.Location).Format("20060102"), DevTenantID, DevBranchID,
		opt.Now.In(opt.Location).Format(time.DateOnly), now); err != nil {
		return fmt.Errorf("seed daily pass: %w", err)
	}

	return tx.Commit()
}

func seedMemberRows(ctx context.Context, tx *sql.Tx, m seedMember, at time.Time, now int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO members(member_id, tenant_id, branch_id, name, created_at_ms)
VALUES (?, ?, ?, ?, ?);`, m.id, DevTenantID, DevBranchID, m.name, now); err != nil {
		return fmt.Errorf("seed member %s: %w", m.id, err)
	}
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO cards(card_uid, tenant_id, branch_id, member_id, card_status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, 'ACTIVE', ?, ?);`, m.card, DevTenantID, DevBranchID, m.id, now, now); err != nil {
		return fmt.Errorf("seed card %s: %w", m.card, err)
	}
	end := at.Add(m.endIn)
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO subscriptions(subscription_id, member_id, branch_id, status, start_at_ms, end_at_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`,
		"sub_"+m.id, m.id, DevBranchID, m.subStatus,
		end.AddDate(0, -1, 0).UTC().UnixMilli(), end.UTC().UnixMilli(), now); err != nil {
		return fmt.Errorf("seed subscription %s: %w", m.id, err)
	}
	return nil
}
