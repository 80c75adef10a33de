package httpapi

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

const (
	terminalAuthHeader = "X-Terminal-Auth"
	adminTokenHeader   = "X-Admin-Token"
)

// terminalCredentials reads base64("terminalId:secret") from
// X-Terminal-Auth, falling back to HTTP Basic auth.
func terminalCredentials(r *http.Request) (id, secret string, ok bool) {
	if v := strings.TrimSpace(r.Header.Get(terminalAuthHeader)); v != "" {
		raw, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return "", "", false
		}
		id, secret, ok = strings.Cut(string(raw), ":")
		return id, secret, ok && id != ""
	}
	return r.BasicAuth()
}

// EncodeTerminalAuth builds the X-Terminal-Auth header value.
func EncodeTerminalAuth(terminalID, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(terminalID + ":" + secret))
}

// requireAdmin gates staff endpoints behind a shared token. With no
// token configured the endpoints are off.
func requireAdmin(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" {
			writeError(w, http.StatusForbidden, "admin_disabled", "admin API is not configured")
			return
		}
		got := r.Header.Get(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
