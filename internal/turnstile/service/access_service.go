package service

import (
	"context"
	"errors"
	"expvar"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/BrandonDHaskell/Turnstile/internal/clock"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/cardid"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// decisionCounts is published at /debug/vars, keyed by result code.
var decisionCounts = expvar.NewMap("turnstile_decisions")

type AccessConfig struct {
	Clock clock.Clock

	// Location is the day boundary for daily passes when the terminal's
	// branch has no zone of its own. Defaults to UTC.
	Location *time.Location

	Logger *log.Logger
}

// AccessService answers POST /access/check for a terminal the caller
// has already authenticated. Each call decides and appends one audit
// event in a single store transaction.
type AccessService struct {
	registry   *TerminalRegistry
	store      store.AccessStore
	clock      clock.Clock
	defaultLoc *time.Location
	logger     *log.Logger
	tracer     trace.Tracer

	locs sync.Map // zone name -> *time.Location
}

func NewAccessService(reg *TerminalRegistry, st store.AccessStore, cfg AccessConfig) *AccessService {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &AccessService{
		registry:   reg,
		store:      st,
		clock:      cfg.Clock,
		defaultLoc: cfg.Location,
		logger:     cfg.Logger,
		tracer:     otel.Tracer("github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"),
	}
}

// Check decides one tap. On error the returned response still carries
// Result ERROR and a message fit for the kiosk screen, and nothing has
// been written to the audit log.
func (s *AccessService) Check(ctx context.Context, term types.Terminal, rawUID string) (types.CheckResponse, error) {
	ctx, span := s.tracer.Start(ctx, "access.check",
		trace.WithAttributes(attribute.String("turnstile.terminal_id", term.ID)))
	defer span.End()

	_ = s.registry.NoteSeen(ctx, term.ID)

	uid := cardid.Normalize(rawUID)
	if uid == "" {
		return s.fail(span, ErrInvalidCardUID)
	}
	span.SetAttributes(attribute.String("turnstile.card_uid", uid))

	now := s.clock.Now().UTC()
	day := now.In(s.location(term.Timezone)).Format(time.DateOnly)

	var d decision
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx store.AccessTx) error {
		dc := &decider{tx: tx, term: term, uid: uid, now: now, day: day}

		var err error
		if d, err = dc.run(ctx); err != nil {
			return err
		}

		rec := store.AccessEventRecord{
			ID:         uuid.NewString(),
			CardUID:    uid,
			TerminalID: term.ID,
			BranchID:   term.BranchID,
			TenantID:   term.TenantID,
			Result:     d.result,
			Message:    d.message,
			OccurredAt: now,
		}
		if d.member != nil {
			rec.MemberID = d.member.ID
		}
		return tx.AppendEvent(ctx, rec)
	})
	if err != nil {
		s.logger.Printf("access check terminal=%s uid=%s: %v", term.ID, uid, err)
		return s.fail(span, err)
	}

	decisionCounts.Add(string(d.result), 1)
	span.SetAttributes(attribute.String("turnstile.result", string(d.result)))
	return d.response(), nil
}

func (s *AccessService) fail(span trace.Span, err error) (types.CheckResponse, error) {
	decisionCounts.Add(string(types.ResultError), 1)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	msg := "server error, try again"
	if errors.Is(err, ErrInvalidCardUID) {
		msg = "card not read, tap again"
	}
	return types.CheckResponse{Result: types.ResultError, Message: msg}, err
}

func (s *AccessService) location(name string) *time.Location {
	if name == "" {
		return s.defaultLoc
	}
	if loc, ok := s.locs.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		s.logger.Printf("unknown branch timezone %q, using %s", name, s.defaultLoc)
		loc = s.defaultLoc
	}
	s.locs.Store(name, loc)
	return loc
}
