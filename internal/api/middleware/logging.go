// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/lifeboat-sh/lifeboat/internal/log"
)

// Logging emits one structured line per request once the handler returns,
// so the recorded duration covers the full handler latency.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lw := &metricsWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Info().
			Str("event", "http.request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", lw.statusCode).
			Dur("duration", time.Since(start)).
			Msg("request handled")
	})
}
