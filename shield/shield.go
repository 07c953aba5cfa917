// Package shield holds the HTTP middleware shared by the review server:
// security headers, request body limits, HEAD handling and per-request
// logging.
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	for _, mw := range shield.Stack(logger, 10<<20) {
//	    r.Use(mw)
//	}
package shield

import (
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// Stack returns the default middleware chain in order: HeadToGet,
// SecurityHeaders(APIHeaders()), MaxBody(maxBytes), RequestLogger(logger).
func Stack(logger *slog.Logger, maxBytes int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(APIHeaders()),
		MaxBody(maxBytes),
		RequestLogger(logger),
	}
}

// HeadToGet serves HEAD through the GET routes, so health probes see 200
// rather than 405. net/http discards the body written for a HEAD request.
func HeadToGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			r.Method = http.MethodGet
		}
		next.ServeHTTP(w, r)
	})
}
