// Package server assembles the stores, services and HTTP routes of the ERP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"schoolerp/internal/domain/attendance"
	"schoolerp/internal/domain/audit"
	"schoolerp/internal/domain/auth"
	"schoolerp/internal/domain/core"
	"schoolerp/internal/domain/leave"
	"schoolerp/internal/domain/notifications"
	"schoolerp/internal/domain/payroll"
	"schoolerp/internal/domain/performance"
	"schoolerp/internal/domain/reports"
	"schoolerp/internal/platform/cache"
	"schoolerp/internal/platform/config"
	"schoolerp/internal/platform/crypto"
	"schoolerp/internal/platform/db"
	"schoolerp/internal/platform/email"
	"schoolerp/internal/platform/events"
	"schoolerp/internal/platform/jobs"
	"schoolerp/internal/platform/lock"
	"schoolerp/internal/platform/metrics"
	"schoolerp/internal/platform/storage"
	"schoolerp/internal/transport/http/api"
	attendancehandler "schoolerp/internal/transport/http/handlers/attendance"
	audithandler "schoolerp/internal/transport/http/handlers/audit"
	authhandler "schoolerp/internal/transport/http/handlers/auth"
	corehandler "schoolerp/internal/transport/http/handlers/core"
	leavehandler "schoolerp/internal/transport/http/handlers/leave"
	notificationshandler "schoolerp/internal/transport/http/handlers/notifications"
	payrollhandler "schoolerp/internal/transport/http/handlers/payroll"
	performancehandler "schoolerp/internal/transport/http/handlers/performance"
	reportshandler "schoolerp/internal/transport/http/handlers/reports"
	"schoolerp/internal/transport/http/middleware"
)

const (
	JobLeaveAccrual = "leave_accrual"
	JobOutboxRelay  = "outbox_relay"
)

// App holds everything a process needs: the HTTP router for the API server
// and the services for the admin CLI.
type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler

	Auth          *auth.Service
	Core          *core.Service
	Attendance    *attendance.Service
	Leave         *leave.Service
	Payroll       *payroll.Service
	Performance   *performance.Service
	Reports       *reports.Service
	Notifications *notifications.Service
	Audit         *audit.Service
	Jobs          *jobs.Service
	Relay         *events.Relay
	Metrics       *metrics.Collector

	authStore *auth.Store
	closers   []func() error
}

type options struct {
	mailer    email.Mailer
	publisher events.Publisher
}

type Option func(*options)

// WithMailer replaces the mailer chosen by EMAIL_PROVIDER.
func WithMailer(m email.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithPublisher replaces the outbox publisher chosen by KAFKA_BROKERS.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// ConfigureLogging installs a JSON slog handler at the configured level as
// the process default.
func ConfigureLogging(cfg config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler).With("service", "schoolerp", "env", cfg.Environment))
}

// New connects to the database, applies migrations and seed data when
// enabled, and wires every service and route.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	app := &App{Config: cfg, DB: pool}
	app.closers = append(app.closers, func() error { pool.Close(); return nil })

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			app.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			app.Close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	if err := app.wire(ctx, o); err != nil {
		app.Close()
		return nil, err
	}
	app.Router = app.routes()
	return app, nil
}

func (a *App) wire(ctx context.Context, o options) error {
	cfg := a.Config
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	cryptoSvc, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		return fmt.Errorf("crypto: %w", err)
	}
	if !cryptoSvc.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set; sensitive fields and files are stored in clear")
	}

	var files storage.Store
	switch cfg.StorageDriver {
	case "s3":
		files, err = storage.NewS3Store(cfg.S3Region, cfg.S3Bucket)
	default:
		files, err = storage.NewLocalStore(cfg.StorageDir)
	}
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	files = storage.NewEncrypted(files, cryptoSvc)

	mailer := o.mailer
	if mailer == nil {
		mailer = email.New(cfg)
	}

	var (
		appCache *cache.Cache
		locker   lock.Locker = lock.NewLocalLocker()
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		appCache = cache.New(rdb, cfg.CacheTTL)
		locker = lock.NewRedisLocker(rdb)
	}

	publisher := o.publisher
	if publisher == nil {
		if len(cfg.KafkaBrokers) > 0 {
			publisher = events.NewKafkaPublisher(cfg.KafkaBrokers)
		} else {
			publisher = &events.MemoryPublisher{}
		}
	}
	a.closers = append(a.closers, publisher.Close)
	outbox := events.NewOutbox(cfg.KafkaTopicPrefix)
	a.Relay = &events.Relay{DB: a.DB, Publisher: publisher}

	if cfg.MetricsEnabled {
		a.Metrics = metrics.New()
	}
	a.Jobs = jobs.New(jobs.NewStore(a.DB))
	a.Audit = audit.New(a.DB)
	a.Notifications = notifications.New(a.DB, mailer, cfg.EmailProvider != "none")

	a.authStore = auth.NewStore(a.DB)
	a.Auth = auth.NewService(a.authStore, cryptoSvc, mailer, auth.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		ResetTTL:   cfg.PasswordResetTTL,
		ResetURL:   cfg.PasswordResetURL,
	})
	a.Core = core.NewService(core.NewStore(a.DB, cryptoSvc), appCache, a.Audit)
	a.Attendance = attendance.NewService(attendance.NewStore(a.DB), a.Audit, loc)
	a.Leave = leave.NewService(leave.NewStore(a.DB), a.Audit, outbox, a.Notifications, a.Metrics)
	a.Performance = performance.NewService(performance.NewStore(a.DB), a.Audit, a.Notifications)

	a.Payroll = payroll.NewService(payroll.NewStore(a.DB), payroll.Options{
		Workers:     cfg.PayrollWorkers,
		LockTTL:     cfg.PayrollLockTTL,
		Institution: cfg.InstitutionName,
	})
	a.Payroll.Audit = a.Audit
	a.Payroll.Outbox = outbox
	a.Payroll.Notifications = a.Notifications
	a.Payroll.Metrics = a.Metrics
	a.Payroll.Jobs = a.Jobs
	a.Payroll.Locker = locker
	a.Payroll.Files = files
	a.Payroll.Mailer = mailer
	a.Payroll.Crypto = cryptoSvc

	a.Reports = reports.NewService(reports.NewStore(a.DB), cfg.InstitutionName)
	a.Reports.Payslips = a.Payroll
	a.Reports.Jobs = a.Jobs
	a.Reports.Files = files
	a.Reports.Crypto = cryptoSvc
	a.Reports.Cache = appCache
	a.Reports.Metrics = a.Metrics

	a.Jobs.Every(JobLeaveAccrual, cfg.LeaveAccrualInterval, func(ctx context.Context) (any, error) {
		return a.Leave.AccrueMonthly(ctx, time.Now().In(loc))
	})
	a.Jobs.Every(JobOutboxRelay, cfg.OutboxPollInterval, func(ctx context.Context) (any, error) {
		return a.Relay.Poll(ctx)
	})
	return nil
}

func (a *App) routes() http.Handler {
	cfg := a.Config
	perms := a.authStore
	idem := middleware.NewIdempotencyStore(a.DB)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger)
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "Retry-After", "Idempotent-Replayed", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           300,
		}).Handler)
	}
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveRateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Metrics(a.Metrics))
	router.Use(middleware.Auth(cfg.JWTSecret, a.authStore))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	if a.Metrics != nil {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, a.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	authHandler := authhandler.NewHandler(a.Auth, perms, a.Audit)
	router.Route("/api/v1", func(r chi.Router) {
		authHandler.RegisterPublic(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			authHandler.RegisterRoutes(r)
			corehandler.NewHandler(a.Core, a.Leave, a.Attendance, a.Payroll, perms).RegisterRoutes(r)
			attendancehandler.NewHandler(a.Attendance, perms).RegisterRoutes(r)
			leavehandler.NewHandler(a.Leave, perms, a.Jobs).RegisterRoutes(r)
			payrollhandler.NewHandler(a.Payroll, perms, idem).RegisterRoutes(r)
			performancehandler.NewHandler(a.Performance, perms).RegisterRoutes(r)
			reportshandler.NewHandler(a.Reports, a.Jobs, perms).RegisterRoutes(r)
			notificationshandler.NewHandler(a.Notifications).RegisterRoutes(r)
			audithandler.NewHandler(a.Audit, perms).RegisterRoutes(r)
		})
	})
	return router
}

// Start launches the job worker and schedulers. They stop when ctx is
// cancelled; Wait on Jobs to drain them.
func (a *App) Start(ctx context.Context) {
	a.Jobs.Start(ctx)
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		slog.Warn("shutdown cleanup failed", "err", err)
	}
}
