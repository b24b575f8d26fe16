package common

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

// ClientIP attempts to determine the real client IP address from the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if candidate := strings.TrimSpace(first); candidate != "" {
			return candidate
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

// DecodeJSON decodes the request body into dst rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
