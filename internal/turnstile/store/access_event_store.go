package store

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

var (
	ErrAlreadyVoided = errors.New("event already voided")
	ErrNotVoided     = errors.New("event is not voided")
)

// AccessEventRecord is one decision in the append-only audit log. Only
// the void fields ever change after insert.
type AccessEventRecord struct {
	ID         string
	CardUID    string
	TerminalID string
	BranchID   string
	TenantID   string
	MemberID   string // empty when no member was resolved
	Result     types.ResultCode
	Message    string
	OccurredAt time.Time

	VoidedAt   *time.Time
	VoidReason string
	VoidedBy   string
}

func (r AccessEventRecord) Voided() bool { return r.VoidedAt != nil }

type CorrectionAction string

const (
	CorrectionVoid   CorrectionAction = "void"
	CorrectionUnvoid CorrectionAction = "unvoid"
)

// Correction is the log entry written for every void or unvoid.
type Correction struct {
	EventID string
	Action  CorrectionAction
	Reason  string
	Actor   string
	At      time.Time
}

type EventFilter struct {
	BranchID   string
	TerminalID string
	Limit      int
}

type AccessEventStore interface {
	// Event returns ErrNotFound for an unknown id.
	Event(ctx context.Context, id string) (AccessEventRecord, error)

	// ListEvents returns newest first.
	ListEvents(ctx context.Context, f EventFilter) ([]AccessEventRecord, error)

	// ApplyCorrection flips the event's void flag and records c in the
	// same transaction. It returns ErrAlreadyVoided or ErrNotVoided when
	// the flag is already in the requested state.
	ApplyCorrection(ctx context.Context, c Correction) (AccessEventRecord, error)

	Corrections(ctx context.Context, eventID string) ([]Correction, error)

	// CountEntries counts non-voided events in [from, to) whose result
	// is one of codes.
	CountEntries(ctx context.Context, branchID string, from, to time.Time, codes []types.ResultCode) (int, error)
}
