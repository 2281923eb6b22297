package middleware

import (
	"log/slog"
	"net/http"

	"github.com/zenleaftraders/zenleaftraders/pkg/logger"
)

// SessionHeader names the request header carrying the cart session token.
const SessionHeader = "X-Cart-Session"

// RequestLogger builds a request-scoped logger carrying correlation_id,
// session, trace_id and span_id and stores it with logger.NewContext.
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if session := r.Header.Get(SessionHeader); session != "" && logger.SessionFromContext(ctx) == "" {
				ctx = logger.WithSession(ctx, session)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
