package sqlite_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	sqlitestore "github.com/BrandonDHaskell/Turnstile/internal/turnstile/store/sqlite"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

func newHeartbeatFixture(t *testing.T) (*sql.DB, *sqlitestore.HeartbeatStore) {
	t.Helper()
	conn := openTestDB(t)
	w := newTestWriter(t, conn)
	seedBranch(t, conn, "b1", "t1", "off")
	seedTerminal(t, conn, "kiosk-1", "t1", "b1")
	return conn, sqlitestore.NewHeartbeatStore(conn, w)
}

// ═══════════════════════════════════════════════════════════════════════════
// AppendHeartbeat
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeatStore_AppendHeartbeat_InsertsAndUpdatesSnapshot(t *testing.T) {
	conn, hs := newHeartbeatFixture(t)
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	err := hs.AppendHeartbeat(context.Background(), "kiosk-1", store.HeartbeatRecord{
		ReceivedAt: now,
		Request: types.HeartbeatRequest{
			Sequence:        7,
			FirmwareVersion: "1.2.0",
			ReaderModel:     "ACR122U",
			UptimeSeconds:   300,
			IP:              "10.0.0.5",
		},
	})
	if err != nil {
		t.Fatalf("AppendHeartbeat: %v", err)
	}

	var (
		seq, uptime int64
		fw, reader  string
	)
	err = conn.QueryRow(`SELECT seq, uptime_s, fw_version, reader_model FROM terminal_heartbeats WHERE terminal_id = 'kiosk-1'`).
		Scan(&seq, &uptime, &fw, &reader)
	if err != nil {
		t.Fatalf("query heartbeat: %v", err)
	}
	if seq != 7 || uptime != 300 || fw != "1.2.0" || reader != "ACR122U" {
		t.Errorf("heartbeat row = %d %d %q %q", seq, uptime, fw, reader)
	}

	var (
		lastSeen int64
		lastIP   sql.NullString
	)
	err = conn.QueryRow(`SELECT last_seen_at_ms, last_ip FROM terminals WHERE terminal_id = 'kiosk-1'`).Scan(&lastSeen, &lastIP)
	if err != nil {
		t.Fatalf("query terminal: %v", err)
	}
	if lastSeen != now.UnixMilli() || lastIP.String != "10.0.0.5" {
		t.Errorf("snapshot = %d %v", lastSeen, lastIP)
	}
}

func TestHeartbeatStore_AppendHeartbeat_KeepsLastKnownValues(t *testing.T) {
	conn, hs := newHeartbeatFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

	_ = hs.AppendHeartbeat(ctx, "kiosk-1", store.HeartbeatRecord{ReceivedAt: now, Request: types.HeartbeatRequest{FirmwareVersion: "1.0"}})
	_ = hs.AppendHeartbeat(ctx, "kiosk-1", store.HeartbeatRecord{ReceivedAt: now.Add(time.Minute)})

	var fw sql.NullString
	if err := conn.QueryRow(`SELECT last_fw_version FROM terminals WHERE terminal_id = 'kiosk-1'`).Scan(&fw); err != nil {
		t.Fatalf("query: %v", err)
	}
	if fw.String != "1.0" {
		t.Errorf("last_fw_version = %v, want 1.0 kept", fw)
	}

	var n int
	_ = conn.QueryRow(`SELECT COUNT(*) FROM terminal_heartbeats`).Scan(&n)
	if n != 2 {
		t.Errorf("expected 2 append-only rows, got %d", n)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// PruneOlderThan
// ═══════════════════════════════════════════════════════════════════════════

func TestHeartbeatStore_PruneOlderThan(t *testing.T) {
	conn, hs := newHeartbeatFixture(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		rec := store.HeartbeatRecord{ReceivedAt: base.AddDate(0, 0, i)}
		if err := hs.AppendHeartbeat(ctx, "kiosk-1", rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	deleted, err := hs.PruneOlderThan(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if deleted != 3 {
		t.Errorf("deleted = %d, want 3", deleted)
	}

	var n int
	_ = conn.QueryRow(`SELECT COUNT(*) FROM terminal_heartbeats`).Scan(&n)
	if n != 2 {
		t.Errorf("remaining = %d, want 2", n)
	}
}
