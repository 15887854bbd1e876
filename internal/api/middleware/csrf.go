// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// CSRFProtection refuses POSTs that a browser sent from a foreign page. The
// source page is taken from Origin, else Referer; it must be same-origin or
// in allowedOrigins. Requests carrying neither header (mvctl, curl) pass.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := originSet(allowedOrigins)
	trusted := func(r *http.Request, source string) bool {
		return allowed["*"] || allowed[source] || source == serverOrigin(r)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if source, ok := sourceOrigin(r); ok && !trusted(r, source) {
				writeError(w, http.StatusForbidden, "Forbidden", "cross-origin request not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sourceOrigin reports the page origin a browser attached to r. ok is false
// when the request carries no browser origin at all. An unparsable Referer
// yields an origin that never matches.
func sourceOrigin(r *http.Request) (origin string, ok bool) {
	if o := r.Header.Get("Origin"); o != "" {
		return strings.TrimSuffix(o, "/"), true
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "invalid", true
	}
	return u.Scheme + "://" + u.Host, true
}

// serverOrigin is the origin the client addressed, honouring a TLS
// terminating proxy.
func serverOrigin(r *http.Request) string {
	if r.Host == "" {
		return ""
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host
}
