package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zenleaftraders/zenleaftraders/pkg/health"
	"github.com/zenleaftraders/zenleaftraders/pkg/middleware"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/service"
)

// RouterConfig holds the HTTP surface settings of the cart service.
type RouterConfig struct {
	Environment    string
	AllowedOrigins []string
	PprofCIDRs     []string

	// StreamsDone, when closed, ends every open event stream.
	StreamsDone <-chan struct{}
}

// NewRouter creates a chi router with all cart service routes registered.
func NewRouter(
	cartService *service.CartService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	cors.Environment = cfg.Environment
	if len(cfg.AllowedOrigins) > 0 {
		cors.AllowedOrigins = cfg.AllowedOrigins
	}

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cors))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("cart"))
	r.Use(middleware.Tracing("cart"))
	r.Use(middleware.RequestLogger(logger))
	r.Use(EscapedRoutePath)

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	// Cart API endpoints
	cartHandler := NewCartHandler(cartService, logger)
	cartHandler.done = cfg.StreamsDone

	r.Route("/api/v1/cart", func(r chi.Router) {
		// Event streams are long-lived and must not be buffered.
		r.With(SessionFromHeaderOrQuery).Get("/events", cartHandler.Events)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Compress(5))
			r.Use(chimw.Timeout(30 * time.Second))
			r.Use(ContentTypeJSON)
			r.Use(SessionFromHeader)

			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Get("/count", cartHandler.GetCount)

			r.Post("/items", cartHandler.AddItem)
			r.Post("/items/raw", cartHandler.AddRawItem)
			r.Put("/items/{key}", cartHandler.UpdateItemQuantity)
			r.Delete("/items/{key}", cartHandler.RemoveItem)
		})
	})

	return r
}
