package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/store"
)

type eventView struct {
	ID         string `json:"id"`
	CardUID    string `json:"card_uid"`
	TerminalID string `json:"terminal_id"`
	BranchID   string `json:"branch_id"`
	MemberID   string `json:"member_id,omitempty"`
	Result     string `json:"result"`
	Message    string `json:"message,omitempty"`
	OccurredAt string `json:"occurred_at"`
	Voided     bool   `json:"voided"`
	VoidedAt   string `json:"voided_at,omitempty"`
	VoidReason string `json:"void_reason,omitempty"`
	VoidedBy   string `json:"voided_by,omitempty"`
}

func toEventView(rec store.AccessEventRecord) eventView {
	v := eventView{
		ID:         rec.ID,
		CardUID:    rec.CardUID,
		TerminalID: rec.TerminalID,
		BranchID:   rec.BranchID,
		MemberID:   rec.MemberID,
		Result:     string(rec.Result),
		Message:    rec.Message,
		OccurredAt: rec.OccurredAt.UTC().Format(time.RFC3339Nano),
		Voided:     rec.Voided(),
		VoidReason: rec.VoidReason,
		VoidedBy:   rec.VoidedBy,
	}
	if rec.VoidedAt != nil {
		v.VoidedAt = rec.VoidedAt.UTC().Format(time.RFC3339Nano)
	}
	return v
}

type correctionRequest struct {
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

type correctionView struct {
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Actor  string `json:"actor,omitempty"`
	At     string `json:"at"`
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.EventFilter{
		BranchID:   q.Get("branch_id"),
		TerminalID: q.Get("terminal_id"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	recs, err := s.auditService.List(r.Context(), f)
	if err != nil {
		s.internalError(w, "list events", err)
		return
	}
	out := make([]eventView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toEventView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := s.auditService.Event(r.Context(), id)
	if err != nil {
		s.writeAuditError(w, err)
		return
	}
	corrections, err := s.auditService.Corrections(r.Context(), id)
	if err != nil {
		s.internalError(w, "event corrections", err)
		return
	}
	history := make([]correctionView, 0, len(corrections))
	for _, c := range corrections {
		history = append(history, correctionView{
			Action: string(c.Action),
			Reason: c.Reason,
			Actor:  c.Actor,
			At:     c.At.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"event": toEventView(rec), "corrections": history})
}

func (s *Server) handleVoid(w http.ResponseWriter, r *http.Request) {
	s.handleCorrection(w, r, s.auditService.Void)
}

func (s *Server) handleUnvoid(w http.ResponseWriter, r *http.Request) {
	s.handleCorrection(w, r, s.auditService.Unvoid)
}

func (s *Server) handleCorrection(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, eventID, reason, actor string) (store.AccessEventRecord, error),
) {
	var req correctionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
			return
		}
	}

	rec, err := apply(r.Context(), r.PathValue("id"), req.Reason, req.Actor)
	if err != nil {
		s.writeAuditError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventView(rec))
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	branchID := r.PathValue("id")
	day := r.URL.Query().Get("day")

	n, err := s.auditService.EntriesOn(r.Context(), branchID, day)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDay) {
			writeError(w, http.StatusBadRequest, "invalid_day", err.Error())
			return
		}
		s.internalError(w, "count entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"branch_id": branchID, "day": day, "entries": n})
}

func (s *Server) handleMemberStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.statusService.MemberStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "member not found")
			return
		}
		s.internalError(w, "member status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) writeAuditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEventID):
		writeError(w, http.StatusBadRequest, "invalid_event_id", err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "event not found")
	case errors.Is(err, store.ErrAlreadyVoided):
		writeError(w, http.StatusConflict, "already_voided", err.Error())
	case errors.Is(err, store.ErrNotVoided):
		writeError(w, http.StatusConflict, "not_voided", err.Error())
	default:
		s.internalError(w, "audit", err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("%s error: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
