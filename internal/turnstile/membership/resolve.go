// Package membership derives a member's effective status from account,
// card and subscription facts.
//
// Resolve is the only implementation of the status rules. The terminal
// decision path and the dashboard projection both call it, so what a
// member sees on the dashboard always matches what the gate does.
package membership

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// ExpiringWindow is how far ahead of the end date a subscription is
// shown as expiring.
const ExpiringWindow = 7 * 24 * time.Hour

const day = 24 * time.Hour

type Status string

const (
	StatusDeleted        Status = "DELETED"
	StatusPendingCard    Status = "PENDING_CARD"
	StatusNoSubscription Status = "NO_SUBSCRIPTION"
	StatusCancelled      Status = "CANCELLED"
	StatusExpired        Status = "EXPIRED"
	StatusExpiring       Status = "EXPIRING"
	StatusActive         Status = "ACTIVE"
)

// Reason explains a Resolution in machine-readable form.
type Reason string

const (
	ReasonDeleted          Reason = "member_deleted"
	ReasonPendingCard      Reason = "card_pending"
	ReasonNoSubscription   Reason = "no_subscription"
	ReasonCancelled        Reason = "subscription_cancelled"
	ReasonExpired          Reason = "subscription_expired"
	ReasonExpiring         Reason = "subscription_expiring"
	ReasonActive           Reason = "subscription_active"
	ReasonCardRequired     Reason = "card_required"
	ReasonUnrecognizedPlan Reason = "subscription_unrecognized"
)

// Resolution is the effective status of one member at one instant.
// Days is the number of days overdue for EXPIRED and the number of days
// remaining for EXPIRING; zero otherwise.
type Resolution struct {
	Status    Status
	CanAccess bool
	Reason    Reason
	Days      int
	EndDate   *time.Time
}

// Detail renders the reason for people, e.g. "membership expired 5 days ago".
func (r Resolution) Detail() string {
	switch r.Reason {
	case ReasonDeleted:
		return "member removed"
	case ReasonPendingCard:
		return "card not yet issued"
	case ReasonNoSubscription:
		return "no membership"
	case ReasonCancelled:
		return "membership cancelled"
	case ReasonExpired:
		return fmt.Sprintf("membership expired %s ago", plural(r.Days, "day"))
	case ReasonExpiring:
		return fmt.Sprintf("membership expires in %s", plural(r.Days, "day"))
	case ReasonCardRequired:
		return "active card required"
	case ReasonUnrecognizedPlan:
		return "membership not usable"
	default:
		return "membership active"
	}
}

// Resolve evaluates the status rules in priority order; the first match
// wins. card and sub may be nil. Resolve never panics and falls back to
// a no-access status for combinations it does not recognise.
func Resolve(member types.Member, card *types.Card, sub *types.Subscription, now time.Time) Resolution {
	if member.IsDeleted {
		return Resolution{Status: StatusDeleted, Reason: ReasonDeleted}
	}

	if card != nil && card.Status == types.CardPending {
		return Resolution{Status: StatusPendingCard, Reason: ReasonPendingCard}
	}

	if sub == nil {
		return Resolution{Status: StatusNoSubscription, Reason: ReasonNoSubscription}
	}

	end := sub.EndDate

	// Cancellation outranks expiry so a cancelled subscription that has
	// not reached its end date never shows as merely expiring.
	if sub.Status == types.SubscriptionCancelled || sub.CancelledAt != nil {
		return Resolution{Status: StatusCancelled, Reason: ReasonCancelled, EndDate: &end}
	}

	// An ACTIVE row past its end date is data drift; treat it as expired.
	if sub.Status == types.SubscriptionExpired ||
		(sub.Status == types.SubscriptionActive && !end.After(now)) {
		return Resolution{
			Status:  StatusExpired,
			Reason:  ReasonExpired,
			Days:    ceilDays(now.Sub(end)),
			EndDate: &end,
		}
	}

	if sub.Status == types.SubscriptionActive {
		if !end.After(now.Add(ExpiringWindow)) {
			return Resolution{
				Status:    StatusExpiring,
				CanAccess: true,
				Reason:    ReasonExpiring,
				Days:      ceilDays(end.Sub(now)),
				EndDate:   &end,
			}
		}
		if card == nil || card.Status != types.CardActive {
			return Resolution{Status: StatusActive, Reason: ReasonCardRequired, EndDate: &end}
		}
		return Resolution{Status: StatusActive, CanAccess: true, Reason: ReasonActive, EndDate: &end}
	}

	return Resolution{Status: StatusNoSubscription, Reason: ReasonUnrecognizedPlan}
}

// CurrentSubscription returns the authoritative subscription: newest
// CreatedAt, ties broken by latest EndDate. It returns nil for an empty
// history and does not reorder subs.
func CurrentSubscription(subs []types.Subscription) *types.Subscription {
	if len(subs) == 0 {
		return nil
	}
	sorted := make([]types.Subscription, len(subs))
	copy(sorted, subs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].EndDate.After(sorted[j].EndDate)
	})
	current := sorted[0]
	return &current
}

// ResolveHistory resolves against the current subscription in subs.
func ResolveHistory(member types.Member, card *types.Card, subs []types.Subscription, now time.Time) Resolution {
	return Resolve(member, card, CurrentSubscription(subs), now)
}

func ceilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(day)))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
