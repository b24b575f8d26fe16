package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/common"
)

// CSRF protects cookie-identified sessions using the double-submit technique.
// Terminals that send their session in a header are exempt, since browsers
// cannot attach custom headers cross-site without a CORS preflight.
type CSRF struct {
	Header        string
	SessionHeader string
}

// Middleware enforces that unsafe requests relying on the session cookie carry
// a CSRF token header matching the token cookie.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}
	sessionHeader := strings.TrimSpace(c.SessionHeader)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if sessionHeader != "" && strings.TrimSpace(r.Header.Get(sessionHeader)) != "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		if token == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf token", nil)
			return
		}
		cookie, err := r.Cookie(headerName)
		if err != nil || strings.TrimSpace(cookie.Value) == "" {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "missing csrf cookie", nil)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(cookie.Value)) != 1 {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "invalid csrf token", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
