package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/membership"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// StatusService projects member status for dashboards using the same
// resolver as the terminal path.
type StatusService struct {
	reader store.MembershipReader
	clock  clock.Clock
}

func NewStatusService(r store.MembershipReader, clk clock.Clock) *StatusService {
	if clk == nil {
		clk = clock.Real()
	}
	return &StatusService{reader: r, clock: clk}
}

func (s *StatusService) MemberStatus(ctx context.Context, memberID string) (types.MemberStatus, error) {
	snap, err := s.reader.Snapshot(ctx, memberID)
	if err != nil {
		return types.MemberStatus{}, err
	}

	now := s.clock.Now().UTC()
	res := membership.ResolveHistory(snap.Member, snap.Card, snap.Subscriptions, now)

	out := types.MemberStatus{
		MemberID:   snap.Member.ID,
		Name:       snap.Member.Name,
		Status:     string(res.Status),
		CanAccess:  res.CanAccess,
		Reason:     string(res.Reason),
		Detail:     res.Detail(),
		Days:       res.Days,
		CardStatus: types.CardNone,
		AsOf:       now.Format(time.RFC3339),
	}
	if snap.Card != nil {
		out.CardStatus = snap.Card.Status
		out.CardUID = snap.Card.UID
	}
	if res.EndDate != nil {
		out.ExpiresAt = res.EndDate.UTC().Format(time.RFC3339)
	}
	return out, nil
}
