package security

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func csrfHandler() http.Handler {
	return CSRF{Header: "X-CSRF-Token", SessionHeader: "X-Session-ID"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddlewareBlocksCookieSessionWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.AddCookie(&http.Cookie{Name: "pos_session", Value: "till-1"})
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Contains(t, rr.Body.String(), "CSRF_FAILED")
}

func TestCSRFMiddlewareAllowsValidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", nil)
	req.Header.Set("X-CSRF-Token", "secure-token")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "secure-token"})
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestCSRFMiddlewareRejectsMismatch(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req.Header.Set("X-CSRF-Token", "a")
	req.AddCookie(&http.Cookie{Name: "X-CSRF-Token", Value: "b"})
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestCSRFMiddlewareSkipsHeaderSessionsAndSafeMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/lines", nil)
	req.Header.Set("X-Session-ID", "till-1")
	rr := httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	csrfHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}
