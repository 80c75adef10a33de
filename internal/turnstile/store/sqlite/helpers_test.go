package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the production
// pragmas and schema. Closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the in-memory database alive across pool
	// reconnects; the test name keeps databases apart.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}
	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()
	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func exec(t *testing.T, conn *sql.DB, q string, args ...any) {
	t.Helper()
	if _, err := conn.ExecContext(context.Background(), q, args...); err != nil {
		t.Fatalf("exec %q: %v", strings.TrimSpace(q), err)
	}
}

var seedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seedBranch(t *testing.T, conn *sql.DB, branchID, tenantID, mode string) {
	t.Helper()
	exec(t, conn, `
INSERT INTO branches(branch_id, tenant_id, name, assign_mode, created_at_ms)
VALUES (?, ?, ?, ?, ?);`, branchID, tenantID, branchID, mode, seedAt.UnixMilli())
}

func seedTerminal(t *testing.T, conn *sql.DB, terminalID, tenantID, branchID string) {
	t.Helper()
	ms := seedAt.UnixMilli()
	exec(t, conn, `
INSERT INTO terminals(terminal_id, tenant_id, branch_id, display_name, secret_hash,
                      enabled, commissioned_at_ms, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, 'Front', X'00', 1, ?, ?, ?);`, terminalID, tenantID, branchID, ms, ms, ms)
}

func seedMember(t *testing.T, conn *sql.DB, memberID, tenantID, branchID, name string) {
	t.Helper()
	exec(t, conn, `
INSERT INTO members(member_id, tenant_id, branch_id, name, created_at_ms)
VALUES (?, ?, ?, ?, ?);`, memberID, tenantID, branchID, name, seedAt.UnixMilli())
}

// seedCard inserts a card; an empty memberID leaves it unbound.
func seedCard(t *testing.T, conn *sql.DB, uid, tenantID, branchID, memberID, status string) {
	t.Helper()
	var member any
	if memberID != "" {
		member = memberID
	}
	ms := seedAt.UnixMilli()
	exec(t, conn, `
INSERT INTO cards(card_uid, tenant_id, branch_id, member_id, card_status, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`, uid, tenantID, branchID, member, status, ms, ms)
}

func seedSubscription(t *testing.T, conn *sql.DB, id, memberID, branchID, status string, end, created time.Time) {
	t.Helper()
	exec(t, conn, `
INSERT INTO subscriptions(subscription_id, member_id, branch_id, status, start_at_ms, end_at_ms, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`, id, memberID, branchID, status,
		end.AddDate(0, -1, 0).UnixMilli(), end.UnixMilli(), created.UnixMilli())
}

// seedAssignment inserts an open assignment. Empty terminalID or
// expectedUID are stored as NULL.
func seedAssignment(t *testing.T, conn *sql.DB, id, tenantID, branchID, memberID, terminalID, expectedUID string, created time.Time) {
	t.Helper()
	var term, exp any
	if terminalID != "" {
		term = terminalID
	}
	if expectedUID != "" {
		exp = expectedUID
	}
	exec(t, conn, `
INSERT INTO card_assignments(assignment_id, tenant_id, branch_id, member_id, terminal_id, expected_uid, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?);`, id, tenantID, branchID, memberID, term, exp, created.UnixMilli())
}
