package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/zenleaftraders/zenleaftraders/pkg/database"
	"github.com/zenleaftraders/zenleaftraders/pkg/health"
	pkgkafka "github.com/zenleaftraders/zenleaftraders/pkg/kafka"
	"github.com/zenleaftraders/zenleaftraders/pkg/tracing"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/config"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/event"
	handler "github.com/zenleaftraders/zenleaftraders/services/cart/internal/handler/http"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/notify"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/service"
	"github.com/zenleaftraders/zenleaftraders/services/cart/internal/storage"
)

const serviceName = "cart-service"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	origin         string
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	listener       *notify.RedisListener
	service        *service.CartService
	httpServer     *http.Server
	closeStreams   context.CancelFunc
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{
		cfg:    cfg,
		logger: logger,
		origin: uuid.NewString(),
	}

	// Tracing.
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Environment
	tcfg.Enabled = cfg.OTELEnabled
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tcfg.SampleRate = cfg.OTELSampleRate
	shutdown, err := tracing.InitTracer(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()
	bus := notify.NewBus()
	notifiers := notify.Multi{bus}

	// Storage.
	var backend storage.Backend
	switch cfg.Storage {
	case config.StorageMemory:
		backend = storage.NewMemoryBackend()
		logger.Warn("using in-memory cart storage; carts are lost on restart")
	default:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPass
		rcfg.DB = cfg.RedisDB
		rdb, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			a.closeAll()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.rdb = rdb
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)

		backend = storage.NewRedisBackend(rdb, cfg.TTL())
		notifiers = append(notifiers, notify.NewRedisPublisher(rdb, cfg.ChangesChannel, a.origin))
		a.listener = notify.NewRedisListener(rdb, cfg.ChangesChannel, a.origin, backend, bus, logger)
		healthHandler.RegisterCritical("redis", database.RedisChecker(rdb))
	}

	// Kafka producer.
	if cfg.KafkaEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		notifiers = append(notifiers, event.NewProducer(a.producer, a.origin, logger))
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Build the dependency graph.
	a.service = service.NewCartService(backend, notifiers, bus, logger)

	// HTTP router.
	streams, closeStreams := context.WithCancel(context.Background())
	a.closeStreams = closeStreams
	router := handler.NewRouter(a.service, healthHandler, logger, handler.RouterConfig{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
		StreamsDone:    streams.Done(),
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// Event streams never go idle on their own.
	a.httpServer.RegisterOnShutdown(closeStreams)

	logger.Info("cart service wired",
		slog.String("storage", cfg.Storage),
		slog.String("origin", a.origin),
		slog.Bool("kafka", cfg.KafkaEnabled),
	)

	return a, nil
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Service returns the cart service.
func (a *App) Service() *service.CartService {
	return a.service
}

// Run starts the HTTP server and the cross-instance change listener and
// blocks until the context is canceled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		a.closeAll()
		return fmt.Errorf("listen %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.listener != nil {
		// Subscribe before serving so changes published by peers right after
		// startup are seen.
		if err := a.listener.Subscribe(ctx); err != nil {
			_ = ln.Close()
			a.closeAll()
			return fmt.Errorf("cart change listener: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting HTTP server",
			slog.String("addr", ln.Addr().String()),
		)
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.listener != nil {
		g.Go(func() error {
			return a.listener.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.shutdownHTTP()
	})

	err := g.Wait()
	a.closeAll()
	a.logger.Info("application shutdown complete")
	return err
}

// shutdownHTTP stops the HTTP server with a 10-second deadline.
func (a *App) shutdownHTTP() error {
	a.logger.Info("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}
	return nil
}

func (a *App) closeAll() {
	if a.closeStreams != nil {
		a.closeStreams()
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
