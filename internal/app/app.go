// Package app assembles backends and services from configuration. The API
// server, the report worker and the admin CLI all start from Open.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"printshop/internal/apperr"
	"printshop/internal/auth"
	"printshop/internal/careers"
	"printshop/internal/certificate"
	"printshop/internal/config"
	"printshop/internal/docstore"
	"printshop/internal/httpapi"
	"printshop/internal/idgen"
	"printshop/internal/logger"
	"printshop/internal/metrics"
	"printshop/internal/queue"
	"printshop/internal/report"
	"printshop/internal/shop"
	"printshop/internal/store"
)

// App holds everything one process shares.
type App struct {
	Config   config.App
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB    *store.DB
	Redis *store.Redis
	Store docstore.Store
	IDs   *idgen.Generator

	Certificates *certificate.Service
	Careers      *careers.Service
	Shop         *shop.Service
	Auth         *auth.Service
	Renderer     *report.Renderer

	closers []func()
}

// Open connects the configured backends and builds the services on top of
// them. Close releases whatever Open acquired.
func Open(ctx context.Context, cfg config.App, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		Config:   cfg,
		Logger:   log,
		Registry: reg,
		Metrics:  metrics.New(reg),
		Renderer: report.NewRenderer(cfg.Organisation),
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	counter, err := a.openCounter()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.IDs = idgen.New(counter, func(k idgen.Kind) { a.Metrics.IDIssued(string(k)) })

	loc := cfg.Location()
	a.Certificates = certificate.NewService(certificate.NewRepository(a.Store), a.IDs, certificate.Options{
		Courses:       cfg.Courses,
		Location:      loc,
		LookupTimeout: cfg.StoreTimeout,
		Logger:        log,
		Metrics:       a.Metrics,
	})
	a.Careers = careers.NewService(a.Store, a.IDs, loc, log)
	a.Shop = shop.NewService(a.Store, a.IDs, cfg.OrderLeadTime, loc, log)
	a.Auth = auth.NewService(a.Store, auth.Settings{
		Issuer:     cfg.JWTIssuer,
		SigningKey: cfg.JWTSigningKey,
		AccessTTL:  cfg.AccessTTL,
	}, log)

	if err := a.bootstrapAdmin(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) needsRedis() bool {
	return a.Config.StoreBackend == "postgres" || a.Config.CounterBackend == "redis" ||
		a.Config.QueueBackend == "redis" || a.Config.QueueBackend == "asynq"
}

func (a *App) redis() *store.Redis {
	if a.Redis == nil {
		a.Redis = store.NewRedis(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		r := a.Redis
		a.closers = append(a.closers, func() { _ = r.Close() })
	}
	return a.Redis
}

func (a *App) db(ctx context.Context) (*store.DB, error) {
	if a.DB != nil {
		return a.DB, nil
	}
	db, err := store.NewDB(ctx, a.Config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := db.EnsureSchema(ctx, docstore.Schema, idgen.CounterSchema); err != nil {
		db.Close()
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.StoreBackend {
	case "memory":
		a.Store = docstore.NewMemory()
		a.Logger.Warn("using in-memory document store; data is lost on restart")
	case "postgres":
		db, err := a.db(ctx)
		if err != nil {
			return err
		}
		notifier := docstore.NewRedisNotifier(a.redis().Client)
		a.Store = docstore.NewPostgres(db.Pool, notifier, a.Config.PollInterval, logger.Component(a.Logger, "docstore"))
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", a.Config.StoreBackend)
	}
	return nil
}

func (a *App) openCounter() (idgen.Counter, error) {
	backend := a.Config.CounterBackend
	if backend == "" {
		backend = a.Config.StoreBackend
	}
	switch backend {
	case "memory":
		if a.Config.StoreBackend == "postgres" {
			return nil, errors.New("COUNTER_BACKEND=memory cannot number records kept in STORE_BACKEND=postgres")
		}
		return idgen.NewMemoryCounter(), nil
	case "redis":
		return idgen.NewRedisCounter(a.redis().Client), nil
	case "postgres":
		if a.DB == nil {
			return nil, errors.New("COUNTER_BACKEND=postgres requires STORE_BACKEND=postgres")
		}
		return idgen.NewPostgresCounter(a.DB.Pool), nil
	default:
		return nil, fmt.Errorf("unknown COUNTER_BACKEND %q", backend)
	}
}

// bootstrapAdmin creates the configured admin account on first start.
func (a *App) bootstrapAdmin(ctx context.Context) error {
	if a.Config.AdminEmail == "" || a.Config.AdminPassword == "" {
		return nil
	}
	_, err := a.Auth.AddAdmin(ctx, a.Config.AdminEmail, a.Config.AdminPassword, "admin")
	if errors.Is(err, apperr.ErrConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}

// Publisher returns the queue report archive requests go to, or nil when
// QUEUE_BACKEND is "none". The in-memory queue is also returned as a
// Consumer so the caller can drain it in process.
func (a *App) Publisher() (queue.Publisher, queue.Consumer, error) {
	switch a.Config.QueueBackend {
	case "none", "":
		return nil, nil, nil
	case "memory":
		q := queue.NewInMemory(64)
		return q, q, nil
	case "redis":
		return queue.NewRedisQueue(a.redis().Client, ""), nil, nil
	case "asynq":
		p := queue.NewAsynqPublisher(a.AsynqRedis())
		a.closers = append(a.closers, func() { _ = p.Close() })
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown QUEUE_BACKEND %q", a.Config.QueueBackend)
	}
}

// Consumer returns the queue a worker reads archive requests from.
func (a *App) Consumer() (queue.Consumer, error) {
	if a.Config.QueueBackend != "redis" {
		return nil, fmt.Errorf("QUEUE_BACKEND %q has no standalone consumer", a.Config.QueueBackend)
	}
	return queue.NewRedisQueue(a.redis().Client, ""), nil
}

// AsynqRedis is the connection asynq clients and servers share.
func (a *App) AsynqRedis() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: a.Config.RedisAddr, Password: a.Config.RedisPassword, DB: a.Config.RedisDB}
}

// Archivist builds the report archiver, creating the bucket if needed.
func (a *App) Archivist(ctx context.Context) (*report.Archivist, error) {
	if !a.Config.ObjectStorageEnabled() {
		return nil, errors.New("object storage not configured (S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY)")
	}
	bucket, err := report.NewBucket(a.Config)
	if err != nil {
		return nil, err
	}
	if err := bucket.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return report.NewArchivist(a.Certificates, a.Renderer, bucket, a.Logger, a.Metrics), nil
}

// HealthChecks lists the backends this process depends on.
func (a *App) HealthChecks() []httpapi.HealthCheck {
	var checks []httpapi.HealthCheck
	if a.DB != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "db", Check: a.DB.Healthy})
	}
	if a.needsRedis() {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Check: a.redis().Healthy})
	}
	return checks
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
