package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"

	"fundscope/internal/config"
	"fundscope/internal/dataset"
	apierrors "fundscope/internal/errors"
	"fundscope/internal/infrastructure"
	mw "fundscope/internal/middleware"
	"fundscope/internal/report"
	"fundscope/internal/services"
	handlers "fundscope/internal/transport/http"
	ws "fundscope/internal/websocket"
	"fundscope/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config           *config.Config
	Router           *chi.Mux
	Server           *http.Server
	Logger           *slog.Logger
	OTelProviders    *infrastructure.OTelProviders
	WebSocketHub     *ws.Hub
	DashboardService *services.DashboardService
	HealthService    *services.HealthService
	Runtime          *infrastructure.RuntimeCollector

	metrics      *infrastructure.BusinessMetrics
	errorHandler *apierrors.ErrorHandler
	reloader     *Reloader

	stopOnce sync.Once
	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewApplication loads configuration, initializes logging and OpenTelemetry
// and wires the application.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, apierrors.NewConfigError("failed to load configuration", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.GetVersionString()))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := ws.InitOTelMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize WebSocket OpenTelemetry metrics: %w", err)
	}

	return New(context.Background(), cfg, logger, otelProviders)
}

// New wires an application from an explicit configuration. providers may
// be nil, in which case metrics go to the global meter and /metrics is not
// served.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, providers *infrastructure.OTelProviders) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: providers,
		errorHandler:  apierrors.NewErrorHandler(logger, false),
	}

	if err := a.initializeServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices initializes all application services
func (a *Application) initializeServices(ctx context.Context) error {
	meter := otel.GetMeterProvider().Meter(infrastructure.MeterName)
	if a.OTelProviders != nil && a.OTelProviders.Meter != nil {
		meter = a.OTelProviders.Meter
	}

	businessMetrics, err := infrastructure.CreateBusinessMetrics(meter)
	if err != nil {
		return fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.metrics = businessMetrics

	collector, err := infrastructure.NewRuntimeCollector(meter, 0)
	if err != nil {
		return fmt.Errorf("failed to create runtime collector: %w", err)
	}
	a.Runtime = collector

	src, err := dataset.ParseSource(ctx, a.Config.Dataset.Source, S3SourceFactory(a.Config.S3, a.Logger))
	if err != nil {
		return apierrors.NewConfigError("invalid dataset source", err).
			WithContext("source", a.Config.Dataset.Source)
	}

	layouts := report.NewRegistry()
	if file := a.Config.Dashboard.LayoutsFile; file != "" {
		names, err := layouts.LoadFile(file)
		if err != nil {
			return apierrors.NewConfigError("failed to load layouts", err).
				WithContext("file", file)
		}
		a.Logger.Info("layouts loaded",
			slog.String("file", file),
			slog.Any("layouts", names))
	}

	builder := report.NewBuilder(report.BuilderOptions{
		PredictionWindow: report.YearWindow{
			From: a.Config.Dashboard.PredictionFrom,
			To:   a.Config.Dashboard.PredictionTo,
		},
		MaxConcurrency: a.Config.Dashboard.MaxConcurrency,
	}, a.Logger)

	hub := ws.NewHub(a.Logger, ws.OptionsFromConfig(a.Config.WebSocket))
	a.WebSocketHub = hub

	dashboard, err := services.NewDashboardService(services.DashboardOptions{
		Source:        src,
		LoadOptions:   dataset.LoadOptions{Sheet: a.Config.Dataset.Sheet, MaxBytes: a.Config.Dataset.MaxBytes, Logger: a.Logger},
		Layouts:       layouts,
		DefaultLayout: a.Config.Dashboard.DefaultLayout,
		Builder:       builder,
		Cache:         report.NewCache(a.Config.Dataset.CacheTTL, a.Config.Dataset.CacheSize),
		Notifier:      hub,
		Metrics:       businessMetrics,
		Logger:        a.Logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize dashboard service: %w", err)
	}
	a.DashboardService = dashboard

	a.HealthService = services.NewHealthService(dashboard, hub, collector, a.Logger)
	a.reloader = NewReloader(dashboard, a.Config.Dataset.ReloadInterval, a.Logger)

	return nil
}

// S3SourceFactory returns a factory that builds S3 sources, each with its
// own client and circuit breaker. It only runs when the configured source
// is an s3:// URI.
func S3SourceFactory(s3cfg config.S3Config, logger *slog.Logger) dataset.SourceFactory {
	return func(ctx context.Context, bucket, key string) (dataset.Source, error) {
		client, err := dataset.NewS3Client(ctx, dataset.S3Config{
			Region:          s3cfg.Region,
			Endpoint:        s3cfg.Endpoint,
			AccessKeyID:     s3cfg.AccessKeyID,
			SecretAccessKey: s3cfg.SecretAccessKey,
			PathStyle:       s3cfg.PathStyle,
		})
		if err != nil {
			return nil, err
		}

		breaker := infrastructure.NewCircuitBreaker(infrastructure.BreakerConfig{
			Name:                "s3:" + bucket,
			MaxFailures:         s3cfg.MaxFailures,
			OpenTimeout:         s3cfg.BreakerTimeout,
			HalfOpenMaxRequests: 1,
		}, logger)
		return dataset.NewS3Source(client, bucket, key, breaker), nil
	}
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Safe for websocket upgrades: neither wraps the ResponseWriter
	r.Use(mw.RequestID)
	r.Use(mw.RealIP)

	wsHandler := ws.NewHandler(a.WebSocketHub, a.Config.WebSocket,
		a.Config.Security.AllowedOrigins, isDevelopmentMode(), a.errorHandler, a.Logger)
	r.With(mw.WebSocketTraceMiddleware(a.Logger)).Handle(config.WebSocketEndpoint, wsHandler)

	// RequestID → RealIP → OTel → Logger → Recoverer → Timeout
	r.Group(func(r chi.Router) {
		tracer := otel.Tracer(infrastructure.MeterName)
		if a.OTelProviders != nil && a.OTelProviders.Tracer != nil {
			tracer = a.OTelProviders.Tracer
		}
		r.Use(mw.NewOTelMiddleware(tracer, a.metrics, a.Logger).Handler)
		r.Use(mw.StructuredLogger(a.Logger))
		r.Use(apierrors.RecoveryMiddleware(a.errorHandler))
		r.Use(mw.DefaultSecureHeaders().Handler)
		r.Use(mw.CORS(a.corsConfig()))

		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(mw.NewRateLimiter(rl.RPS, rl.Burst, a.errorHandler, a.Logger).Handler)
		}
		r.Use(mw.Compress(5))

		a.setupAPIRoutes(r)
	})

	if a.OTelProviders != nil && a.OTelProviders.PrometheusHTTP != nil {
		r.Handle(config.MetricsEndpoint, a.OTelProviders.PrometheusHTTP)
	}

	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Route(config.APIBasePath, func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Use(mw.Timeout(a.Config.Server.RequestTimeout, a.Logger))

		healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
		r.Mount("/health", healthHandler.Routes())
		r.Get("/version", healthHandler.Version)

		dashboardHandler := handlers.NewDashboardHandler(a.DashboardService, a.Logger, a.errorHandler)
		r.Mount("/dashboard", dashboardHandler.Routes())

		validation := mw.NewValidationMiddleware(a.Logger, a.errorHandler)
		trendHandler := handlers.NewTrendHandler(a.DashboardService, a.Logger, a.errorHandler)
		r.With(validation.ValidateRequest).Mount("/trend", trendHandler.Routes())

		datasetHandler := handlers.NewDatasetHandler(a.DashboardService, a.Logger, a.errorHandler)
		r.With(mw.AuditLog(a.Logger)).Mount("/dataset", datasetHandler.Routes())
	})
}

func (a *Application) corsConfig() mw.CORSConfig {
	cors := mw.CORSConfig{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
	if a.Config.Security.EnableCORS {
		cors.AllowedOrigins = a.Config.Security.AllowedOrigins
	} else {
		// same origin only
		cors.AllowedOrigins = []string{"http://localhost:" + fmt.Sprint(a.Config.Server.Port)}
	}
	return cors
}

// isDevelopmentMode relaxes the websocket origin check.
func isDevelopmentMode() bool {
	env := os.Getenv("ENVIRONMENT")
	return env == "development" || os.Getenv("GO_ENV") == "development"
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// StartBackground loads the dataset and starts the hub, the runtime
// collector and the periodic reloader. A failed first load is logged, not
// returned: the server still starts and reports not ready until a reload
// succeeds.
func (a *Application) StartBackground(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.bgCancel = cancel

	a.WebSocketHub.Start()

	if err := a.DashboardService.Load(ctx); err != nil {
		a.Logger.ErrorContext(ctx, "initial dataset load failed",
			slog.String("source", a.Config.Dataset.Source),
			slog.String("error", err.Error()))
	} else {
		st := a.DashboardService.Status()
		a.Logger.InfoContext(ctx, "dataset loaded",
			slog.String("source", st.Source),
			slog.Int("rows", st.Rows),
			slog.Int("skipped", st.Skipped),
			slog.String("fingerprint", st.Fingerprint))
	}

	a.bgWG.Add(2)
	go func() {
		defer a.bgWG.Done()
		a.Runtime.Start(bgCtx)
	}()
	go func() {
		defer a.bgWG.Done()
		a.reloader.Run(bgCtx)
	}()
}

// Start starts background work and the HTTP server. Server failures call
// cancel so Run can shut down.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("dataset", a.Config.Dataset.Source))

	a.StartBackground(ctx)

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	a.Logger.InfoContext(ctx, "application started",
		slog.String("address", fmt.Sprintf("http://localhost:%d", a.Config.Server.Port)))
	return nil
}

// Stop gracefully stops the application. It is safe to call more than
// once.
func (a *Application) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		a.Logger.InfoContext(ctx, "shutting down application")

		shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
		defer cancel()

		if a.Server != nil {
			if serr := a.Server.Shutdown(shutdownCtx); serr != nil {
				err = fmt.Errorf("server shutdown error: %w", serr)
			}
		}

		if a.bgCancel != nil {
			a.bgCancel()
		}
		a.Runtime.Stop()
		a.bgWG.Wait()

		a.WebSocketHub.Stop()
		a.DashboardService.Close()

		if a.OTelProviders != nil {
			if oerr := a.OTelProviders.Shutdown(shutdownCtx); oerr != nil {
				a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", oerr.Error()))
			}
		}

		a.Logger.InfoContext(ctx, "application shutdown complete")
	})
	return err
}

// Run runs the application until SIGINT, SIGTERM or a server failure.
func (a *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("received shutdown signal")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout+5*time.Second)
	defer stopCancel()
	return a.Stop(stopCtx)
}
