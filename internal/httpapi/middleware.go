package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/service"
	"github.com/BrandonDHaskell/Turnstile/internal/turnstile/types"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("%s %s status=%d from=%s dur=%s",
			r.Method, r.URL.Path, rec.status, r.RemoteAddr, time.Since(start))
	})
}

// terminalLimits holds the per-minute quotas for terminal endpoints. A
// nil limiter never limits.
type terminalLimits struct {
	check     *httprate.RateLimiter
	heartbeat *httprate.RateLimiter

	// failures counts rejected credentials per client address, so a
	// forged terminal id never spends the real terminal's quota.
	failures *httprate.RateLimiter
}

func newTerminalLimits(perMinute int) terminalLimits {
	if perMinute <= 0 {
		return terminalLimits{}
	}
	return terminalLimits{
		check:     httprate.NewRateLimiter(perMinute, time.Minute),
		heartbeat: httprate.NewRateLimiter(perMinute, time.Minute),
		failures:  httprate.NewRateLimiter(perMinute, time.Minute),
	}
}

// spend charges one request to key and reports whether the quota was
// already used up.
func spend(l *httprate.RateLimiter, w http.ResponseWriter, r *http.Request, key string) bool {
	if l == nil {
		return false
	}
	return l.OnLimit(w, r, key)
}

// admitTerminal authenticates the caller and charges the request to its
// terminal quota. Failed authentication is charged to the client address
// instead. On false the rejection has been written through reject.
func (s *Server) admitTerminal(w http.ResponseWriter, r *http.Request, quota *httprate.RateLimiter, reject func(status int, msg string)) (types.Terminal, bool) {
	id, secret, ok := terminalCredentials(r)
	err := service.ErrUnauthorized
	var term types.Terminal
	if ok {
		term, err = s.registry.Authenticate(r.Context(), id, secret)
	}

	switch {
	case err == nil:
	case errors.Is(err, service.ErrUnauthorized):
		ip, _ := httprate.KeyByIP(r)
		if spend(s.limits.failures, w, r, "addr:"+ip) {
			s.logger.Printf("auth failures exceeded addr=%s path=%s", ip, r.URL.Path)
			reject(http.StatusTooManyRequests, "too many requests")
			return types.Terminal{}, false
		}
		reject(http.StatusUnauthorized, "terminal not authorized")
		return types.Terminal{}, false
	default:
		s.logger.Printf("terminal auth error: %v", err)
		reject(http.StatusInternalServerError, "server error, try again")
		return types.Terminal{}, false
	}

	if spend(quota, w, r, "terminal:"+term.ID) {
		s.logger.Printf("rate limit exceeded terminal=%s path=%s", term.ID, r.URL.Path)
		reject(http.StatusTooManyRequests, "too many requests")
		return types.Terminal{}, false
	}
	return term, true
}
