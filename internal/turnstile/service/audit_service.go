package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

const maxEventLimit = 500

// AuditService exposes the access log to staff. Events are never edited
// or removed; a void only flags an event and every flag change is kept
// in the correction log.
type AuditService struct {
	events store.AccessEventStore
	clock  clock.Clock
	loc    *time.Location
}

func NewAuditService(es store.AccessEventStore, clk clock.Clock, loc *time.Location) *AuditService {
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AuditService{events: es, clock: clk, loc: loc}
}

func (s *AuditService) Void(ctx context.Context, eventID, reason, actor string) (store.AccessEventRecord, error) {
	return s.correct(ctx, store.CorrectionVoid, eventID, reason, actor)
}

func (s *AuditService) Unvoid(ctx context.Context, eventID, reason, actor string) (store.AccessEventRecord, error) {
	return s.correct(ctx, store.CorrectionUnvoid, eventID, reason, actor)
}

func (s *AuditService) correct(ctx context.Context, action store.CorrectionAction, eventID, reason, actor string) (store.AccessEventRecord, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return store.AccessEventRecord{}, ErrInvalidEventID
	}
	return s.events.ApplyCorrection(ctx, store.Correction{
		EventID: eventID,
		Action:  action,
		Reason:  strings.TrimSpace(reason),
		Actor:   strings.TrimSpace(actor),
		At:      s.clock.Now().UTC(),
	})
}

func (s *AuditService) Event(ctx context.Context, eventID string) (store.AccessEventRecord, error) {
	return s.events.Event(ctx, eventID)
}

func (s *AuditService) Corrections(ctx context.Context, eventID string) ([]store.Correction, error) {
	return s.events.Corrections(ctx, eventID)
}

// List returns events newest first. Limit is clamped to 1..500.
func (s *AuditService) List(ctx context.Context, f store.EventFilter) ([]store.AccessEventRecord, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > maxEventLimit {
		f.Limit = maxEventLimit
	}
	return s.events.ListEvents(ctx, f)
}

// EntriesOn counts non-voided entries at a branch on a local calendar
// day (YYYY-MM-DD). An empty day means today.
func (s *AuditService) EntriesOn(ctx context.Context, branchID, day string) (int, error) {
	var from time.Time
	if strings.TrimSpace(day) == "" {
		now := s.clock.Now().In(s.loc)
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	} else {
		t, err := time.ParseInLocation(time.DateOnly, day, s.loc)
		if err != nil {
			return 0, ErrInvalidDay
		}
		from = t
	}
	to := from.AddDate(0, 0, 1)
	return s.events.CountEntries(ctx, branchID, from, to, types.EntryCodes())
}
