package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"evalreport/internal/auth"
	"evalreport/internal/config"
	apperrors "evalreport/internal/errors"
	"evalreport/internal/evaluation"
	"evalreport/internal/infrastructure"
	"evalreport/internal/middleware"
	"evalreport/internal/services"
	"evalreport/internal/sheetcache"
	"evalreport/internal/sheets"
	transport "evalreport/internal/transport/http"
	"evalreport/internal/validation"
)

// Version information
const (
	AppName = config.AppName
)

var (
	// Version is set at compile time
	Version = config.AppVersion
	// BuildTime is set at compile time
	BuildTime = ""
)

const (
	sessionPurgeInterval = 10 * time.Minute
	compressionLevel     = 5
)

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Router        *chi.Mux
	Server        *http.Server
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.ReportMetrics
	ErrorHandler  *apperrors.ErrorHandler
	Validator     *middleware.Validator

	Cache         *sheetcache.Cache
	ReportService *services.ReportService
	HealthService *services.HealthService
	Directory     *auth.Directory
	Sessions      *auth.SessionStore

	source   sheetcache.Source
	listener net.Listener
	stopBg   context.CancelFunc
	bg       sync.WaitGroup
}

// Option customizes an Application before its services are built.
type Option func(*Application)

// WithSource replaces the configured tab source.
func WithSource(source sheetcache.Source) Option {
	return func(a *Application) {
		a.source = source
	}
}

// WithLogger replaces the logger built from the logging config.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Application) {
		a.Logger = logger
	}
}

// NewApplication loads the configuration at configPath (or the usual
// locations when empty) and wires the application.
func NewApplication(configPath string, opts ...Option) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return New(cfg, opts...)
}

// New wires an application around an already loaded configuration.
func New(cfg *config.Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{Config: cfg}
	for _, opt := range opts {
		opt(app)
	}

	if app.Logger == nil {
		logger, err := infrastructure.InitializeLogger(cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		app.Logger = logger
	}

	app.Logger.Info("Application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("source", cfg.Sheets.Source))

	if err := app.initializeTelemetry(); err != nil {
		return nil, err
	}
	if err := app.initializeServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.setupRouter()
	app.createServer()

	return app, nil
}

func (a *Application) initializeTelemetry() error {
	providers, err := infrastructure.InitializeOTel(
		infrastructure.OTelConfigFromConfig(a.Config.Metrics, Version), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	if providers.Meter == nil {
		a.Metrics = infrastructure.NewNoopReportMetrics()
		return nil
	}

	metrics, err := infrastructure.CreateReportMetrics(providers.Meter)
	if err != nil {
		a.Logger.Error("Failed to create report metrics", slog.String("error", err.Error()))
		metrics = infrastructure.NewNoopReportMetrics()
	}
	a.Metrics = metrics
	return nil
}

// initializeServices creates all application services
func (a *Application) initializeServices() error {
	cfg := a.Config

	spreadsheetID := cfg.Sheets.File
	if cfg.Sheets.Source == config.SourceSheets {
		spreadsheetID = sheets.NormalizeSpreadsheetID(cfg.Sheets.SpreadsheetID)
	}

	if a.source == nil {
		source, err := a.buildSource()
		if err != nil {
			return err
		}
		a.source = source
	}

	a.Cache = sheetcache.New(a.source, cfg.Sheets.CacheTTL, a.Logger,
		sheetcache.WithLookupHook(func(ctx context.Context, hit bool) {
			infrastructure.RecordCacheRequest(ctx, a.Metrics, hit)
		}),
	)

	assembler := evaluation.NewAssembler(
		evaluation.ColumnMap(cfg.Columns),
		evaluation.NewRegionTable(cfg.Regions),
		a.Logger,
		evaluation.WithLocation(cfg.Location()),
		evaluation.WithMappingFailureHook(func(ctx context.Context, tab string) {
			infrastructure.RecordTabMappingFailure(ctx, a.Metrics, tab)
		}),
	)

	a.ReportService = services.NewReportService(a.Cache, assembler, services.ReportServiceConfig{
		SpreadsheetID: spreadsheetID,
		FetchTimeout:  cfg.Sheets.FetchTimeout,
		PreviewRows:   config.DefaultPreviewRows,
	}, a.Logger, services.WithMetrics(a.Metrics))

	a.Directory = auth.NewDirectory(cfg.Users)
	if a.Directory.Len() == 0 {
		a.Logger.Warn("No users configured, every login will be rejected")
	}
	a.Sessions = auth.NewSessionStore(cfg.Security.SessionTTL, nil)

	a.HealthService = services.NewHealthService(Version, BuildTime, a.ReportService, a.Directory.Len(), a.Logger)
	a.ErrorHandler = apperrors.NewErrorHandler(a.Logger, cfg.Logging.Development)
	a.Validator = middleware.NewValidator()

	a.Logger.Info("Services initialized",
		slog.String("spreadsheet_id", spreadsheetID),
		slog.Duration("cache_ttl", cfg.Sheets.CacheTTL),
		slog.Int("users", a.Directory.Len()))

	return nil
}

func (a *Application) buildSource() (sheetcache.Source, error) {
	switch a.Config.Sheets.Source {
	case config.SourceXLSX:
		if err := validation.NewFileValidator(a.Logger).ValidateWorkbook(a.Config.Sheets.File); err != nil {
			return nil, apperrors.NewConfigError("invalid workbook source", err)
		}
		return sheets.NewFileSource(a.Logger), nil
	default:
		source, err := sheets.NewGoogleSource(context.Background(), a.Config.Sheets, a.Logger)
		if err != nil {
			return nil, apperrors.NewConfigError("cannot create Google Sheets client", err)
		}
		return source, nil
	}
}

// setupRouter configures the HTTP router
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.NewOTelMiddleware(a.tracer(), a.Metrics, a.Logger).Handler)
	r.Use(middleware.StructuredLogger(a.Logger))
	r.Use(apperrors.RecoveryMiddleware(a.ErrorHandler))
	r.Use(middleware.SecurityHeaders)

	if a.Config.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins:   a.Config.Security.AllowedOrigins,
			ExposedHeaders:   []string{"Content-Disposition", "Warning", "X-Request-ID"},
			AllowCredentials: true,
			Logger:           a.Logger,
		}))
	}

	r.NotFound(a.ErrorHandler.NotFound)
	r.MethodNotAllowed(a.ErrorHandler.MethodNotAllowed)

	if a.OTelProviders != nil && a.OTelProviders.Registry != nil {
		r.Handle("/metrics", transport.NewMetricsHandler(a.OTelProviders.Registry))
	}

	r.Route("/api", a.setupAPIRoutes)

	a.Router = r
}

// setupAPIRoutes configures API endpoints
func (a *Application) setupAPIRoutes(r chi.Router) {
	r.Use(render.SetContentType(render.ContentTypeJSON))
	if a.Config.Server.RequestTimeout > 0 {
		r.Use(middleware.Timeout(a.Config.Server.RequestTimeout))
	}
	r.Use(middleware.Compress(compressionLevel))

	healthHandler := transport.NewHealthHandler(a.HealthService, a.Logger)
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/health/ready", healthHandler.ReadinessCheck)
	r.Get("/health/live", healthHandler.LivenessCheck)
	r.Get("/version", healthHandler.Version)

	requireSession := middleware.RequireSession(a.Sessions, a.Logger, a.ErrorHandler)
	requireAdmin := middleware.RequireAdmin(a.Logger, a.ErrorHandler)

	authHandler := transport.NewAuthHandler(a.Directory, a.Sessions, a.Validator, a.Metrics,
		a.Config.Security.CookieSecure, a.Logger, a.ErrorHandler)
	reportHandler := transport.NewReportHandler(a.ReportService, a.Validator, a.Logger, a.ErrorHandler)
	clientLogHandler := transport.NewClientLogHandler(a.Validator, a.Logger, a.ErrorHandler)

	r.Group(func(r chi.Router) {
		if a.Config.Security.RateLimit.Enabled {
			r.Use(middleware.NewRateLimiter(
				a.Config.Security.RateLimit.RPS,
				a.Config.Security.RateLimit.Burst,
				a.Logger,
				a.ErrorHandler,
			).Handler)
		}

		r.Mount("/auth", authHandler.Routes(requireSession))

		r.Group(func(r chi.Router) {
			r.Use(requireSession)
			r.Mount("/data", reportHandler.Routes(requireAdmin))
			r.With(middleware.ContentTypeValidator(a.ErrorHandler, "application/json")).
				Post("/client-log", clientLogHandler.Handle)
		})
	})
}

func (a *Application) tracer() trace.Tracer {
	if a.OTelProviders != nil && a.OTelProviders.Tracer != nil {
		return a.OTelProviders.Tracer
	}
	return otel.Tracer(infrastructure.MeterName)
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

// Addr returns the address the server listens on once started.
func (a *Application) Addr() string {
	if a.listener == nil {
		return a.Server.Addr
	}
	return a.listener.Addr().String()
}

// Start binds the listener, serves in the background and starts the
// dataset warm-up and session purge loops. cancel is called if the
// server stops unexpectedly.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("level", a.Config.Logging.Level))

	listener, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Server.Addr, err)
	}
	a.listener = listener

	go func() {
		if err := a.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	bgCtx, stopBg := context.WithCancel(context.WithoutCancel(ctx))
	a.stopBg = stopBg

	a.bg.Add(2)
	go func() {
		defer a.bg.Done()
		a.warmUp(bgCtx)
	}()
	go func() {
		defer a.bg.Done()
		a.purgeSessions(bgCtx, sessionPurgeInterval)
	}()

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Addr()))

	return nil
}

// warmUp loads the dataset once so the first report request is fast.
func (a *Application) warmUp(ctx context.Context) {
	ctx = infrastructure.EnsureTraceID(ctx)
	ds, state, err := a.ReportService.Dataset(ctx)
	if err != nil {
		a.Logger.WarnContext(ctx, "Initial dataset load failed",
			slog.String("error", err.Error()),
			slog.String("message", state.Message))
		return
	}
	a.Logger.InfoContext(ctx, "Initial dataset loaded",
		slog.Int("records", len(ds.Records)),
		slog.Int("warnings", len(ds.Warnings)))
}

func (a *Application) purgeSessions(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := a.Sessions.Purge(); removed > 0 {
				a.Logger.DebugContext(ctx, "Expired sessions purged", slog.Int("removed", removed))
			}
		}
	}
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	if a.stopBg != nil {
		a.stopBg()
		a.bg.Wait()
	}

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal")
	case <-ctx.Done():
		a.Logger.ErrorContext(ctx, "Server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
