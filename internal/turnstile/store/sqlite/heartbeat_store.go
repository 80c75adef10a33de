package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/Turnstile/internal/db"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
)

type HeartbeatStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewHeartbeatStore(db *sql.DB, writer *dbpkg.Worker) *HeartbeatStore {
	return &HeartbeatStore{db: db, writer: writer}
}

// AppendHeartbeat inserts one heartbeat row and refreshes the terminal's
// last-known snapshot columns. The terminal must already exist; only
// authenticated terminals reach this point.
func (s *HeartbeatStore) AppendHeartbeat(ctx context.Context, terminalID string, rec store.HeartbeatRecord) error {
	terminalID = strings.TrimSpace(terminalID)
	if terminalID == "" {
		return nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	recvMs := rec.ReceivedAt.UTC().UnixMilli()

	req := rec.Request
	fw := toNullString(strings.TrimSpace(req.FirmwareVersion))
	reader := toNullString(strings.TrimSpace(req.ReaderModel))
	ip := toNullString(strings.TrimSpace(req.IP))

	var seq, uptime any
	if req.Sequence != 0 {
		seq = int64(req.Sequence)
	}
	if req.UptimeSeconds != 0 {
		uptime = int64(req.UptimeSeconds)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO terminal_heartbeats(
  terminal_id, received_at_ms, seq, uptime_s, fw_version, reader_model, ip
) VALUES (?, ?, ?, ?, ?, ?, ?);
`, terminalID, recvMs, seq, uptime, fw, reader, ip); err != nil {
			return fmt.Errorf("AppendHeartbeat insert: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE terminals
SET last_seen_at_ms   = ?,
    last_ip           = COALESCE(?, last_ip),
    last_fw_version   = COALESCE(?, last_fw_version),
    last_reader_model = COALESCE(?, last_reader_model),
    updated_at_ms     = ?
WHERE terminal_id = ?;
`, recvMs, ip, fw, reader, recvMs, terminalID); err != nil {
			return fmt.Errorf("AppendHeartbeat update terminal: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes heartbeat rows received before cutoff and
// reports how many went.
func (s *HeartbeatStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM terminal_heartbeats
WHERE received_at_ms < ?;
`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}
