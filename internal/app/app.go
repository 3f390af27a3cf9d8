package app

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"time"

	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/health"
	"student-records/internal/httputil"
	"student-records/internal/kafka"
	"student-records/internal/logger"
	"student-records/internal/messaging"
	"student-records/internal/metrics"
	"student-records/internal/middleware"
	"student-records/internal/student"
	"student-records/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

type App struct {
	config    *config.Config
	router    chi.Router
	server    *http.Server
	logger    *slog.Logger
	db        *bun.DB
	telemetry *telemetry.Telemetry
	closers   []namedCloser
}

type namedCloser struct {
	name   string
	closer io.Closer
}

// RouterDeps is everything the HTTP surface needs.
type RouterDeps struct {
	Students       *student.Handler
	Health         *health.Handler
	CORSOrigins    []string
	TrustProxyHops int
	RateLimit      middleware.RateLimitOptions
	Logger         *slog.Logger
}

func New() *App {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	slogLogger := logger.NewWithServiceContext(ServiceName, Version, cfg.Env)

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "commit", GitCommit, "build_time", BuildTime)

	ctx := context.Background()

	tel, err := telemetry.Init(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, cfg.Env, slogLogger)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	m := tel.Metrics
	meter := otel.Meter(ServiceName)

	database, err := db.New(cfg.Database)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	if err := m.Database.RegisterDB(database.DB, meter); err != nil {
		slogLogger.Warn("failed to register database pool metrics", "error", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.RunMigrations(migrateCtx, database, (*student.Student)(nil)); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	app := &App{
		config:    cfg,
		logger:    slogLogger,
		db:        database,
		telemetry: tel,
	}

	dependencies := []string{health.DependencyPostgres}
	if cfg.Events.Driver == "nats" || cfg.Events.Driver == "kafka" {
		dependencies = append(dependencies, cfg.Events.Driver)
	}
	if err := m.Health.RegisterDependencies(ctx, meter, dependencies); err != nil {
		slogLogger.Warn("failed to register dependency metrics", "error", err)
	}

	publisher := app.newPublisher(cfg.Events, m)
	store := app.newRateLimitStore(ctx, cfg.RateLimit.Redis)

	studentRepo := student.NewRepository(database, m)
	studentService := student.NewService(studentRepo, publisher, slogLogger, m)
	studentHandler := student.NewHandler(studentService, student.NewValidator(), slogLogger, m)

	healthTimeout := time.Duration(cfg.Database.HealthTimeoutMillis) * time.Millisecond
	healthHandler := health.NewHandler(database, healthTimeout, cfg.Env, slogLogger, m)

	app.router = NewRouter(RouterDeps{
		Students:       studentHandler,
		Health:         healthHandler,
		CORSOrigins:    cfg.Server.CORSOrigins,
		TrustProxyHops: cfg.Server.TrustProxyHops,
		RateLimit: middleware.RateLimitOptions{
			Max:    cfg.RateLimit.Max,
			Window: time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
			Store:  store,
			Logger: slogLogger,
		},
		Logger: slogLogger,
	})

	slogLogger.Info("application initialized successfully")

	return app
}

// NewRouter assembles middleware and routes. Health endpoints and the API
// index are exempt from rate limiting.
func NewRouter(deps RouterDeps) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.ClientIP(deps.TrustProxyHops))
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(deps.CORSOrigins, deps.Logger))

	rateLimit := deps.RateLimit
	rateLimit.Skip = isExempt
	router.Use(middleware.RateLimit(rateLimit))

	notFound := func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondWithError(w, http.StatusNotFound, "Route not found")
	}
	router.NotFound(notFound)
	router.MethodNotAllowed(notFound)

	deps.Health.RegisterRoutes(router)
	router.Route("/api", func(r chi.Router) {
		deps.Health.RegisterAPIRoutes(r)
		deps.Students.RegisterRoutes(r)
	})

	return router
}

func isExempt(r *http.Request) bool {
	switch r.URL.Path {
	case "/health", "/api/health", "/api", "/api/":
		return true
	}
	return false
}

func (a *App) newPublisher(cfg config.EventsConfig, m *metrics.Metrics) student.Publisher {
	// dependency.up follows the producer's connection state
	status := func(connected bool) {
		m.Health.UpdateDependencyStatus(cfg.Driver, connected)
	}

	switch cfg.Driver {
	case "nats":
		producer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, a.logger, m.Messaging,
			messaging.WithStatusHandler(status))
		if err != nil {
			a.logger.Warn("failed to initialize NATS producer, events disabled", "error", err)
			return student.NoopPublisher()
		}
		a.closers = append(a.closers, namedCloser{name: "nats", closer: producer})
		return producer
	case "kafka":
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, a.logger, m.Messaging,
			kafka.WithStatusHandler(status))
		if err != nil {
			a.logger.Warn("failed to initialize kafka producer, events disabled", "error", err)
			return student.NoopPublisher()
		}
		a.closers = append(a.closers, namedCloser{name: "kafka", closer: producer})
		return producer
	case "", "none":
		return student.NoopPublisher()
	default:
		a.logger.Warn("unknown events driver, events disabled", "driver", cfg.Driver)
		return student.NoopPublisher()
	}
}

func (a *App) newRateLimitStore(ctx context.Context, cfg config.RedisConfig) middleware.Store {
	if cfg.Addr == "" {
		return middleware.NewMemoryStore()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, namedCloser{name: "redis", closer: client})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("redis unreachable, rate limiting fails open until it recovers", "addr", cfg.Addr, "error", err)
	} else {
		a.logger.Info("rate limit counters stored in redis", "addr", cfg.Addr)
	}
	return middleware.NewRedisStore(client, "student-records:ratelimit:")
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         a.config.Server.Addr(),
		Handler:      otelhttp.NewHandler(a.router, ServiceName),
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "addr", a.server.Addr, "environment", a.config.Env)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and then
// releases producers, the rate limit store and the database pool.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, c := range a.closers {
		if err := c.closer.Close(); err != nil {
			a.logger.Warn("failed to close", "component", c.name, "error", err)
		}
	}

	if err := db.Close(a.db); err != nil {
		errs = append(errs, err)
	}

	if err := a.telemetry.Shutdown(ctx, a.logger); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
