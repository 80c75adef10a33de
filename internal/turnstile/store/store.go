package store

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// ErrNotFound is returned by lookups that address a single row by id.
var ErrNotFound = errors.New("not found")

// Snapshot is everything the status resolver needs about one member,
// read at one instant. Card is the member's derived card state: the
// bound card, a PENDING_CARD placeholder while an assignment is open,
// or nil when the member has no card at all.
type Snapshot struct {
	Member        types.Member
	Card          *types.Card
	Subscriptions []types.Subscription
}

type MembershipReader interface {
	// Snapshot returns ErrNotFound for an unknown member id.
	Snapshot(ctx context.Context, memberID string) (Snapshot, error)
}

// AccessTx is the view of the store inside one access decision. All
// reads see one consistent state and every write commits or rolls back
// together with the audit event.
type AccessTx interface {
	MembershipReader

	IsAdminCard(ctx context.Context, tenantID, uid string) (bool, error)

	// CardByUID returns nil, nil when no card carries uid.
	CardByUID(ctx context.Context, uid string) (*types.Card, error)

	// DailyPass returns nil, nil when no pass covers (branch, uid, day).
	DailyPass(ctx context.Context, branchID, uid, day string) (*types.DailyPass, error)

	// OpenAssignment returns the oldest open assignment routed to the
	// terminal, or nil.
	OpenAssignment(ctx context.Context, terminalID string) (*types.CardAssignment, error)

	// NextQueuedAssignment returns the oldest open branch-queue
	// assignment (no terminal, no expected uid), or nil.
	NextQueuedAssignment(ctx context.Context, branchID string) (*types.CardAssignment, error)

	// BindCard makes the existing card uid an ACTIVE card of the
	// assignment's member and closes the assignment. It returns
	// ErrNotFound when no card carries uid.
	BindCard(ctx context.Context, uid string, a types.CardAssignment, at time.Time) error

	AppendEvent(ctx context.Context, rec AccessEventRecord) error
}

type AccessStore interface {
	MembershipReader

	// WithinTx runs fn in one transaction. fn's error aborts it.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx AccessTx) error) error
}
