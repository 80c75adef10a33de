package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/cardid"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/membership"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

const (
	msgAdmin           = "admin session started"
	msgGymMismatch     = "card registered at another gym"
	msgDailyPass       = "day pass valid today"
	msgUnknown         = "card not recognised"
	msgDisabled        = "card disabled"
	msgNotInventory    = "card is not from this gym's inventory"
	msgReclaimMismatch = "card does not match the reclaim request"
	msgStillInUse      = "card still belongs to an active member"
	msgAssigned        = "card assigned"
	msgReclaimed       = "card reclaimed"
)

// decision is the outcome of one tap before it is rendered for the
// terminal and written to the audit log.
type decision struct {
	result  types.ResultCode
	message string
	member  *types.Member
	endDate *time.Time
}

func (d decision) response() types.CheckResponse {
	resp := types.CheckResponse{Result: d.result, Message: d.message}
	if d.member != nil {
		resp.MemberName = d.member.Name
	}
	if d.endDate != nil {
		resp.ExpiresAt = d.endDate.UTC().Format(time.RFC3339)
	}
	return resp
}

func plain(code types.ResultCode, msg string) decision {
	return decision{result: code, message: msg}
}

// withMember builds a decision that names the member and carries the
// resolver's wording, e.g. "membership expired 5 days ago".
func withMember(code types.ResultCode, m types.Member, res membership.Resolution, msg string) decision {
	if msg == "" {
		msg = res.Detail()
	}
	return decision{result: code, message: msg, member: &m, endDate: res.EndDate}
}

// decider runs the decision procedure for one tap inside the store
// transaction. Every read it makes and the binding it may write commit
// together with the audit event.
type decider struct {
	tx   store.AccessTx
	term types.Terminal
	uid  string
	now  time.Time
	day  string // branch-local YYYY-MM-DD
}

func (d *decider) run(ctx context.Context) (decision, error) {
	admin, err := d.tx.IsAdminCard(ctx, d.term.TenantID, d.uid)
	if err != nil {
		return decision{}, err
	}
	if admin {
		return plain(types.ResultSuperAdmin, msgAdmin), nil
	}

	card, err := d.tx.CardByUID(ctx, d.uid)
	if err != nil {
		return decision{}, err
	}
	if card != nil && (card.TenantID != d.term.TenantID || card.BranchID != d.term.BranchID) {
		return plain(types.ResultDenyGymMismatch, msgGymMismatch), nil
	}

	a, err := d.tx.OpenAssignment(ctx, d.term.ID)
	if err != nil {
		return decision{}, err
	}
	if a != nil {
		if a.Reclaim() {
			return d.reclaim(ctx, card, *a)
		}
		return d.assign(ctx, card, *a)
	}

	switch {
	case card == nil:
		return d.unknownCard(ctx)
	case card.Status == types.CardDisabled:
		return plain(types.ResultDenyDisabled, msgDisabled), nil
	case !card.Bound():
		return d.unboundCard(ctx, *card)
	default:
		return d.boundCard(ctx, *card)
	}
}

// ── Staff assignments ───────────────────────────────────────────────────────

func (d *decider) reclaim(ctx context.Context, card *types.Card, a types.CardAssignment) (decision, error) {
	if d.uid != cardid.Normalize(a.ExpectedUID) {
		return plain(types.ResultDenyReclaimMismatch, msgReclaimMismatch), nil
	}
	if card == nil {
		return plain(types.ResultDenyUnknown, msgUnknown), nil
	}

	if card.Bound() && card.MemberID != a.MemberID {
		holder, err := d.tx.Snapshot(ctx, card.MemberID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return decision{}, err
		default:
			res := membership.ResolveHistory(holder.Member, card, holder.Subscriptions, d.now)
			if res.CanAccess {
				return plain(types.ResultDenyReclaimMismatch, msgStillInUse), nil
			}
		}
	}

	return d.bindTo(ctx, *card, a, types.ResultReclaimed, msgReclaimed, types.ResultDenyExpiredPending)
}

func (d *decider) assign(ctx context.Context, card *types.Card, a types.CardAssignment) (decision, error) {
	if card == nil || card.Bound() || card.Status == types.CardDisabled {
		return plain(types.ResultDenyInventory, msgNotInventory), nil
	}
	return d.bindTo(ctx, *card, a, types.ResultAssigned, msgAssigned, types.ResultDenyExpiredPending)
}

// bindTo resolves the assignment's member as if they already held card
// and binds it when that grants access.
func (d *decider) bindTo(ctx context.Context, card types.Card, a types.CardAssignment, ok types.ResultCode, okMsg string, denied types.ResultCode) (decision, error) {
	snap, err := d.tx.Snapshot(ctx, a.MemberID)
	if err != nil {
		return decision{}, fmt.Errorf("assignment %s member %s: %w", a.ID, a.MemberID, err)
	}

	held := card
	held.MemberID = a.MemberID
	held.Status = types.CardActive

	res := membership.ResolveHistory(snap.Member, &held, snap.Subscriptions, d.now)
	if !res.CanAccess {
		return withMember(denied, snap.Member, res, ""), nil
	}

	if err := d.tx.BindCard(ctx, d.uid, a, d.now); err != nil {
		return decision{}, err
	}
	return withMember(ok, snap.Member, res, okMsg), nil
}

// ── Cards without a member ──────────────────────────────────────────────────

func (d *decider) unknownCard(ctx context.Context) (decision, error) {
	pass, err := d.tx.DailyPass(ctx, d.term.BranchID, d.uid, d.day)
	if err != nil {
		return decision{}, err
	}
	if pass != nil {
		return plain(types.ResultDailyOK, msgDailyPass), nil
	}

	if d.term.AssignMode == types.AssignAuto {
		q, err := d.tx.NextQueuedAssignment(ctx, d.term.BranchID)
		if err != nil {
			return decision{}, err
		}
		if q != nil {
			return plain(types.ResultDenyInventory, msgNotInventory), nil
		}
	}
	return plain(types.ResultDenyUnknown, msgUnknown), nil
}

func (d *decider) unboundCard(ctx context.Context, card types.Card) (decision, error) {
	pass, err := d.tx.DailyPass(ctx, d.term.BranchID, d.uid, d.day)
	if err != nil {
		return decision{}, err
	}
	if pass != nil {
		return plain(types.ResultDailyOK, msgDailyPass), nil
	}

	if d.term.AssignMode == types.AssignAuto {
		q, err := d.tx.NextQueuedAssignment(ctx, d.term.BranchID)
		if err != nil {
			return decision{}, err
		}
		if q != nil {
			return d.bindTo(ctx, card, *q, types.ResultAllowAutoAssigned, msgAssigned, types.ResultDenyAutoAssignedExpired)
		}
	}
	return plain(types.ResultDenyUnknown, msgUnknown), nil
}

// ── Member cards ────────────────────────────────────────────────────────────

func (d *decider) boundCard(ctx context.Context, card types.Card) (decision, error) {
	snap, err := d.tx.Snapshot(ctx, card.MemberID)
	if errors.Is(err, store.ErrNotFound) {
		return plain(types.ResultDenyUnknown, msgUnknown), nil
	}
	if err != nil {
		return decision{}, err
	}

	res := membership.ResolveHistory(snap.Member, &card, snap.Subscriptions, d.now)
	return withMember(resultFor(res), snap.Member, res, ""), nil
}

// resultFor maps a member resolution to the terminal result.
func resultFor(res membership.Resolution) types.ResultCode {
	if res.CanAccess {
		return types.ResultAllow
	}
	switch res.Status {
	case membership.StatusDeleted, membership.StatusPendingCard, membership.StatusActive:
		return types.ResultDenyDisabled
	default:
		return types.ResultDenyExpired
	}
}
