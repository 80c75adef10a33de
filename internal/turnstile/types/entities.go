package types

import "time"

type CardStatus string

const (
	CardNone     CardStatus = "NO_CARD"
	CardPending  CardStatus = "PENDING_CARD"
	CardActive   CardStatus = "ACTIVE"
	CardDisabled CardStatus = "DISABLED"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "ACTIVE"
	SubscriptionExpired   SubscriptionStatus = "EXPIRED"
	SubscriptionCancelled SubscriptionStatus = "CANCELLED"
	SubscriptionSuspended SubscriptionStatus = "SUSPENDED"
)

// AssignMode is the per-branch policy for cards that are not yet bound
// to a member.
type AssignMode string

const (
	AssignOff    AssignMode = "off"    // unbound cards are unknown
	AssignManual AssignMode = "manual" // only staff-opened assignments bind cards
	AssignAuto   AssignMode = "auto"   // the branch queue also binds cards
)

// ParseAssignMode maps unrecognised values to AssignOff.
func ParseAssignMode(s string) AssignMode {
	switch AssignMode(s) {
	case AssignManual, AssignAuto:
		return AssignMode(s)
	default:
		return AssignOff
	}
}

// Member deletion is a tenant-scoped soft delete.
type Member struct {
	ID             string
	TenantID       string
	BranchID       string
	Name           string
	Email          string
	IsDeleted      bool
	DeletedAt      *time.Time
	DeletedBy      string
	DeletionReason string
}

// Card is a physical card. An empty MemberID means the card is branch
// inventory; ReleasedAt is set once a previous holder gave it up.
type Card struct {
	UID        string
	TenantID   string
	BranchID   string
	MemberID   string
	Status     CardStatus
	ReleasedAt *time.Time
}

func (c Card) Bound() bool { return c.MemberID != "" }

type Subscription struct {
	ID          string
	MemberID    string
	BranchID    string
	Status      SubscriptionStatus
	StartDate   time.Time
	EndDate     time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
}

// Terminal is a registered entrance device. AssignMode and Timezone
// are copied from its branch; an empty Timezone means the server default.
type Terminal struct {
	ID         string
	TenantID   string
	BranchID   string
	Name       string
	SecretHash []byte
	AssignMode AssignMode
	Timezone   string
}

// DailyPass records a walk-in payment that admits one card for one
// local day.
type DailyPass struct {
	ID       string
	TenantID string
	BranchID string
	CardUID  string
	ValidOn  string // YYYY-MM-DD in the branch time zone
	PaidAt   time.Time
}

// CardAssignment is an open request to bind the next presented card to
// a member. TerminalID routes it to one terminal (staff initiated);
// empty means it waits in the branch queue for auto-assignment.
// ExpectedUID marks a reclaim of a specific card.
type CardAssignment struct {
	ID          string
	TenantID    string
	BranchID    string
	MemberID    string
	TerminalID  string
	ExpectedUID string
	CreatedAt   time.Time
}

func (a CardAssignment) Reclaim() bool { return a.ExpectedUID != "" }
