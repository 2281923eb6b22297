package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/zenleaftraders/zenleaftraders/pkg/errors"
	"github.com/zenleaftraders/zenleaftraders/pkg/httputil"
	"github.com/zenleaftraders/zenleaftraders/pkg/logger"
	"github.com/zenleaftraders/zenleaftraders/pkg/middleware"
	"github.com/zenleaftraders/zenleaftraders/pkg/validator"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// sessionKey is the context key for the cart session.
const sessionKey contextKey = "cart_session"

// sessionQueryParam carries the session for EventSource clients, which
// cannot set request headers.
const sessionQueryParam = "session"

// SessionFromHeader is middleware that reads the X-Cart-Session header and
// stores it in the request context. A missing header is rejected with 401,
// a malformed one with 400.
func SessionFromHeader(next http.Handler) http.Handler {
	return requireSession(next, false)
}

// SessionFromHeaderOrQuery is SessionFromHeader that also accepts the
// session as a query parameter.
func SessionFromHeaderOrQuery(next http.Handler) http.Handler {
	return requireSession(next, true)
}

func requireSession(next http.Handler, allowQuery bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := r.Header.Get(middleware.SessionHeader)
		if session == "" && allowQuery {
			session = r.URL.Query().Get(sessionQueryParam)
		}
		if session == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized("cart session required"), nil)
			return
		}
		if err := validator.ValidateVar("session", session, "session"); err != nil {
			httputil.WriteError(w, r, apperrors.InvalidInput("malformed cart session"), nil)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey, session)
		if logger.SessionFromContext(ctx) == "" {
			ctx = logger.WithSession(ctx, session)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("session", session))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionFromContext extracts the cart session from the request context.
func sessionFromContext(ctx context.Context) string {
	s, _ := ctx.Value(sessionKey).(string)
	return s
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// EscapedRoutePath makes chi match routes against the escaped request path,
// so URL parameters reach handlers still percent-encoded. Item keys may
// contain '/' and '%' and are decoded exactly once by the service.
func EscapedRoutePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath == "" {
			rctx.RoutePath = r.URL.EscapedPath()
		}
		next.ServeHTTP(w, r)
	})
}
