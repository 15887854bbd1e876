// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
)

// devOrigins are allowed when no origins are configured.
var devOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://localhost:8080",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:8080",
}

func originSet(allowedOrigins []string) map[string]bool {
	if len(allowedOrigins) == 0 {
		allowedOrigins = devOrigins
	}
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}
	return allowed
}

// CORS sets Cross-Origin Resource Sharing headers for a strict origin list.
// "*" allows every origin. The job id header is exposed so browser clients
// can cancel a stream.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := originSet(allowedOrigins)
	allowAll := allowed["*"]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			// Not allowed: no header, the browser blocks it. No origin: non-browser client.
			if origin != "" {
				if allowAll || allowed[origin] {
					h.Set("Access-Control-Allow-Origin", origin)
				}
			} else {
				h.Set("Access-Control-Allow-Origin", "*")
			}

			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, Authorization")
			h.Set("Access-Control-Expose-Headers", "X-Job-ID, X-Request-ID, X-Trace-ID")
			h.Set("Access-Control-Max-Age", "600")
			h.Set("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")

			if r.Method == http.MethodOptions {
				h.Set("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
