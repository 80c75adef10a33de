package httpapi

import (
	"errors"
	"net/http"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

// handleCheck always answers with a CheckResponse so the kiosk can show
// feedback, even when the status code reports a failure.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	term, ok := s.admitTerminal(w, r, s.limits.check, func(status int, msg string) {
		respond(w, r, status, types.CheckResponse{Result: types.ResultError, Message: msg})
	})
	if !ok {
		return
	}

	var req types.CheckRequest
	if err := decodeBody(r, &req); err != nil {
		respond(w, r, http.StatusBadRequest, types.CheckResponse{
			Result:  types.ResultError,
			Message: "invalid request body",
		})
		return
	}

	resp, err := s.accessService.Check(r.Context(), term, req.CardUID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCardUID) {
			respond(w, r, http.StatusBadRequest, resp)
			return
		}
		s.logger.Printf("access check error: %v", err)
		respond(w, r, http.StatusInternalServerError, resp)
		return
	}
	respond(w, r, http.StatusOK, resp)
}

var rejectCodes = map[int]string{
	http.StatusUnauthorized:        "unauthorized",
	http.StatusTooManyRequests:     "rate_limited",
	http.StatusInternalServerError: "internal_error",
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	term, ok := s.admitTerminal(w, r, s.limits.heartbeat, func(status int, msg string) {
		writeError(w, status, rejectCodes[status], msg)
	})
	if !ok {
		return
	}

	var req types.HeartbeatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_body", "invalid request body")
		return
	}

	resp, err := s.heartbeatService.Record(r.Context(), term, req)
	if err != nil {
		s.logger.Printf("heartbeat error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	respond(w, r, http.StatusOK, resp)
}
