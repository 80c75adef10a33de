package httpapi

import (
	"context"
	"expvar"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
)

type Dependencies struct {
	Logger *log.Logger
	Addr   string

	// Registry authenticates terminals before any quota is charged.
	Registry *service.TerminalRegistry

	AccessService    *service.AccessService
	HeartbeatService *service.HeartbeatService
	AuditService     *service.AuditService
	StatusService    *service.StatusService

	// AdminToken guards the staff endpoints; empty disables them.
	AdminToken string

	// RateLimitPerMinute caps checks and heartbeats per terminal, and
	// failed authentications per client address; 0 disables.
	RateLimitPerMinute int
}

type Server struct {
	httpServer       *http.Server
	logger           *log.Logger
	mux              *http.ServeMux
	registry         *service.TerminalRegistry
	limits           terminalLimits
	accessService    *service.AccessService
	heartbeatService *service.HeartbeatService
	auditService     *service.AuditService
	statusService    *service.StatusService
}

func NewServer(d Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:           d.Logger,
		mux:              mux,
		registry:         d.Registry,
		limits:           newTerminalLimits(d.RateLimitPerMinute),
		accessService:    d.AccessService,
		heartbeatService: d.HeartbeatService,
		auditService:     d.AuditService,
		statusService:    d.StatusService,
	}

	admin := func(h http.HandlerFunc) http.Handler { return requireAdmin(d.AdminToken, h) }

	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Terminal endpoints.
	mux.HandleFunc("POST /access/check", s.handleCheck)
	mux.HandleFunc("POST /v1/terminals/heartbeat", s.handleHeartbeat)

	// Staff endpoints.
	mux.Handle("GET /v1/access/events", admin(s.handleListEvents))
	mux.Handle("GET /v1/access/events/{id}", admin(s.handleGetEvent))
	mux.Handle("POST /v1/access/events/{id}/void", admin(s.handleVoid))
	mux.Handle("POST /v1/access/events/{id}/unvoid", admin(s.handleUnvoid))
	mux.Handle("GET /v1/branches/{id}/entries", admin(s.handleEntries))
	mux.Handle("GET /v1/members/{id}/status", admin(s.handleMemberStatus))
	mux.Handle("GET /debug/vars", admin(expvar.Handler().ServeHTTP))

	handler := otelhttp.NewHandler(loggingMiddleware(d.Logger, mux), "turnstile-http")

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
