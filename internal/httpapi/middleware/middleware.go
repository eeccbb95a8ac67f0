/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package middleware implements the CORS and security-header wrapping
// around the HTTP surface (CORS, security
// headers" listed as an external collaborator interface; this is that
// interface's concrete realization), grounded on Perkeep's
// pkg/server/share.go CORS header pattern.
package middleware

import "net/http"

// CORSConfig configures CORS handling.
type CORSConfig struct {
	AllowedOrigins []string
	ExposeHeaders  []string
}

// CORS wraps next, setting Access-Control-* headers and short-circuiting
// OPTIONS preflight requests. ETag is exposed for multipart completion
// responses.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	expose := "ETag"
	for _, h := range cfg.ExposeHeaders {
		expose += ", " + h
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Author-Token, X-Device-Id, Authorization")
			w.Header().Set("Access-Control-Expose-Headers", expose)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func originAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// SecurityHeaders sets the conservative baseline security headers any
// JSON/byte-streaming API should carry.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Chain composes middleware in application order: Chain(a, b)(h) runs a
// then b then h.
func Chain(mws ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			h = mws[i](h)
		}
		return h
	}
}
