package memory

import (
	"context"
	"errors"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

var errMissingEventID = errors.New("access event id is required")

// Events returns a copy of all recorded events in insert order.
// Test-only helper.
func (s *AccessStore) Events() []store.AccessEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccessEventRecord, len(s.events))
	copy(out, s.events)
	return out
}

func (s *AccessStore) Event(_ context.Context, id string) (store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return store.AccessEventRecord{}, store.ErrNotFound
}

func (s *AccessStore) ListEvents(_ context.Context, f store.EventFilter) ([]store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.AccessEventRecord
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if f.BranchID != "" && ev.BranchID != f.BranchID {
			continue
		}
		if f.TerminalID != "" && ev.TerminalID != f.TerminalID {
			continue
		}
		out = append(out, ev)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *AccessStore) ApplyCorrection(_ context.Context, c store.Correction) (store.AccessEventRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		ev := &s.events[i]
		if ev.ID != c.EventID {
			continue
		}

		switch c.Action {
		case store.CorrectionVoid:
			if ev.Voided() {
				return *ev, store.ErrAlreadyVoided
			}
			at := c.At
			ev.VoidedAt = &at
			ev.VoidReason = c.Reason
			ev.VoidedBy = c.Actor
		case store.CorrectionUnvoid:
			if !ev.Voided() {
				return *ev, store.ErrNotVoided
			}
			ev.VoidedAt = nil
			ev.VoidReason = ""
			ev.VoidedBy = ""
		}

		s.corrections = append(s.corrections, c)
		return *ev, nil
	}
	return store.AccessEventRecord{}, store.ErrNotFound
}

func (s *AccessStore) Corrections(_ context.Context, eventID string) ([]store.Correction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.Correction
	for _, c := range s.corrections {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *AccessStore) CountEntries(_ context.Context, branchID string, from, to time.Time, codes []types.ResultCode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := make(map[types.ResultCode]bool, len(codes))
	for _, c := range codes {
		want[c] = true
	}

	n := 0
	for _, ev := range s.events {
		if ev.BranchID != branchID || ev.Voided() || !want[ev.Result] {
			continue
		}
		if ev.OccurredAt.Before(from) || !ev.OccurredAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}
