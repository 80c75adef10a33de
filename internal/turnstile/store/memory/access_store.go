package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// AccessStore holds membership facts and the access audit log in
// memory. It is intended for tests and dev environments. WithinTx holds
// the store lock for the whole decision, which serialises decisions the
// same way the sqlite writer does.
type AccessStore struct {
	mu          sync.Mutex
	members     map[string]types.Member
	cards       map[string]types.Card
	subs        map[string][]types.Subscription
	adminCards  map[string]map[string]struct{}
	passes      []types.DailyPass
	assignments []assignment
	events      []store.AccessEventRecord
	corrections []store.Correction

	// failAppend makes AppendEvent fail. Test-only.
	failAppend error
}

type assignment struct {
	types.CardAssignment
	completedAt *time.Time
}

func NewAccessStore() *AccessStore {
	return &AccessStore{
		members:    make(map[string]types.Member),
		cards:      make(map[string]types.Card),
		subs:       make(map[string][]types.Subscription),
		adminCards: make(map[string]map[string]struct{}),
	}
}

// ── Seeding (the CRUD layer owns these rows in production) ──────────────────

func (s *AccessStore) PutMember(m types.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *AccessStore) PutCard(c types.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[c.UID] = c
}

func (s *AccessStore) AddSubscription(sub types.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.MemberID] = append(s.subs[sub.MemberID], sub)
}

func (s *AccessStore) AddAdminCard(tenantID, uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adminCards[tenantID] == nil {
		s.adminCards[tenantID] = make(map[string]struct{})
	}
	s.adminCards[tenantID][uid] = struct{}{}
}

func (s *AccessStore) AddDailyPass(p types.DailyPass) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes = append(s.passes, p)
}

func (s *AccessStore) AddAssignment(a types.CardAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, assignment{CardAssignment: a})
}

// Card returns a copy of the card row. Test-only helper.
func (s *AccessStore) Card(uid string) (types.Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[uid]
	return c, ok
}

// OpenAssignments returns assignments not yet completed. Test-only helper.
func (s *AccessStore) OpenAssignments() []types.CardAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.CardAssignment
	for _, a := range s.assignments {
		if a.completedAt == nil {
			out = append(out, a.CardAssignment)
		}
	}
	return out
}

// FailAppends makes every later AppendEvent return err; nil restores
// normal behaviour. Test-only helper.
func (s *AccessStore) FailAppends(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppend = err
}

// ── store.AccessStore ────────────────────────────────────────────────────────

func (s *AccessStore) Snapshot(_ context.Context, memberID string) (store.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(memberID)
}

func (s *AccessStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.AccessTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &accessTx{s: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, apply := range tx.pending {
		apply()
	}
	return nil
}

func (s *AccessStore) snapshotLocked(memberID string) (store.Snapshot, error) {
	m, ok := s.members[memberID]
	if !ok {
		return store.Snapshot{}, store.ErrNotFound
	}

	subs := make([]types.Subscription, len(s.subs[memberID]))
	copy(subs, s.subs[memberID])

	return store.Snapshot{
		Member:        m,
		Card:          s.memberCardLocked(m),
		Subscriptions: subs,
	}, nil
}

func (s *AccessStore) memberCardLocked(m types.Member) *types.Card {
	var bound []types.Card
	for _, c := range s.cards {
		if c.MemberID == m.ID {
			bound = append(bound, c)
		}
	}
	if len(bound) > 0 {
		// Prefer an ACTIVE card, then lowest uid for determinism.
		sort.Slice(bound, func(i, j int) bool {
			ai, aj := bound[i].Status == types.CardActive, bound[j].Status == types.CardActive
			if ai != aj {
				return ai
			}
			return bound[i].UID < bound[j].UID
		})
		c := bound[0]
		return &c
	}
	for _, a := range s.assignments {
		if a.completedAt == nil && a.MemberID == m.ID {
			return &types.Card{
				TenantID: m.TenantID,
				BranchID: m.BranchID,
				MemberID: m.ID,
				Status:   types.CardPending,
			}
		}
	}
	return nil
}

// accessTx reads the live maps (the store lock is held) and stages
// writes until fn returns without error.
type accessTx struct {
	s       *AccessStore
	pending []func()
}

func (tx *accessTx) Snapshot(_ context.Context, memberID string) (store.Snapshot, error) {
	return tx.s.snapshotLocked(memberID)
}

func (tx *accessTx) IsAdminCard(_ context.Context, tenantID, uid string) (bool, error) {
	_, ok := tx.s.adminCards[tenantID][uid]
	return ok, nil
}

func (tx *accessTx) CardByUID(_ context.Context, uid string) (*types.Card, error) {
	c, ok := tx.s.cards[uid]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (tx *accessTx) DailyPass(_ context.Context, branchID, uid, day string) (*types.DailyPass, error) {
	for _, p := range tx.s.passes {
		if p.BranchID == branchID && p.CardUID == uid && p.ValidOn == day {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (tx *accessTx) OpenAssignment(_ context.Context, terminalID string) (*types.CardAssignment, error) {
	return tx.oldest(func(a assignment) bool { return a.TerminalID == terminalID }), nil
}

func (tx *accessTx) NextQueuedAssignment(_ context.Context, branchID string) (*types.CardAssignment, error) {
	return tx.oldest(func(a assignment) bool {
		return a.BranchID == branchID && a.TerminalID == "" && a.ExpectedUID == ""
	}), nil
}

func (tx *accessTx) oldest(match func(assignment) bool) *types.CardAssignment {
	var best *types.CardAssignment
	for _, a := range tx.s.assignments {
		if a.completedAt != nil || !match(a) {
			continue
		}
		if best == nil || a.CreatedAt.Before(best.CreatedAt) {
			a := a.CardAssignment
			best = &a
		}
	}
	return best
}

func (tx *accessTx) BindCard(_ context.Context, uid string, a types.CardAssignment, at time.Time) error {
	if _, ok := tx.s.cards[uid]; !ok {
		return store.ErrNotFound
	}
	tx.pending = append(tx.pending, func() {
		c := tx.s.cards[uid]
		c.MemberID = a.MemberID
		c.Status = types.CardActive
		c.ReleasedAt = nil
		tx.s.cards[uid] = c

		for i := range tx.s.assignments {
			if tx.s.assignments[i].ID == a.ID {
				done := at
				tx.s.assignments[i].completedAt = &done
			}
		}
	})
	return nil
}

func (tx *accessTx) AppendEvent(_ context.Context, rec store.AccessEventRecord) error {
	if tx.s.failAppend != nil {
		return tx.s.failAppend
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errMissingEventID
	}
	tx.pending = append(tx.pending, func() {
		tx.s.events = append(tx.s.events, rec)
	})
	return nil
}
