package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"hiring-backend/internal/applications"
	"hiring-backend/internal/interviews"
	"hiring-backend/internal/jobs"
	"hiring-backend/internal/queue"
	"hiring-backend/internal/scoring"
	"hiring-backend/internal/shared/config"
	"hiring-backend/internal/shared/server"
	"hiring-backend/internal/shared/server/middleware"
	"hiring-backend/internal/shared/storage/cache"
	"hiring-backend/internal/shared/storage/db"
	"hiring-backend/internal/shared/telemetry"
	"hiring-backend/internal/webhooks"
	"hiring-backend/internal/workerproc"
)

// App holds shared dependencies and the HTTP router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *db.Handle
	Cache  *cache.Handle
	Queue  queue.Client

	JobsRepo         jobs.Repo
	ApplicationsRepo applications.Repo
	Provider         interviews.Provider
	Ledger           webhooks.Ledger

	JobsService         *jobs.Service
	ApplicationsService *applications.Service
	Orchestrator        *interviews.Orchestrator
	Aggregator          *scoring.Aggregator
	Reconciler          *webhooks.Reconciler
	Dispatcher          *workerproc.Dispatcher

	JobsHandler         *jobs.Handler
	ApplicationsHandler *applications.Handler
	InterviewsHandler   *interviews.Handler
	ScoringHandler      *scoring.Handler
	WebhooksHandler     *webhooks.Handler
}

// Options overrides pieces of the build, mostly for tests.
type Options struct {
	Provider interviews.Provider
	Queue    queue.Client
}

// Build opens every handle and wires services, handlers and routes.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	return BuildWith(ctx, cfg, Options{})
}

// BuildWith is Build with explicit overrides.
func BuildWith(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	app := &App{Config: cfg}

	var err error
	if app.DB, err = buildDB(ctx, cfg); err != nil {
		return nil, err
	}
	if app.Cache, err = buildCache(ctx, cfg); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Queue = opts.Queue
	if app.Queue == nil {
		if app.Queue, err = buildQueue(ctx, cfg); err != nil {
			_ = app.Close()
			return nil, err
		}
	}
	app.Provider = opts.Provider
	if app.Provider == nil {
		if app.Provider, err = buildProvider(cfg); err != nil {
			_ = app.Close()
			return nil, err
		}
	}

	if err := buildServices(app); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:       app.Config,
		DB:           app.DB,
		Cache:        app.Cache,
		Jobs:         app.JobsHandler,
		Applications: app.ApplicationsHandler,
		Interviews:   app.InterviewsHandler,
		Scoring:      app.ScoringHandler,
		Webhooks:     app.WebhooksHandler,
	})
	return app, nil
}

// Close releases the database and cache handles.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*db.Handle, error) {
	if cfg.DatabaseURL == "" {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	h, err := db.Open(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database_memory", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, h); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return h, nil
}

func buildCache(ctx context.Context, cfg config.Config) (*cache.Handle, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	h, err := cache.Open(ctx, cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.cache_memory", map[string]any{"error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if cfg.QueueURL == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
}

func buildProvider(cfg config.Config) (interviews.Provider, error) {
	switch {
	case cfg.ProviderBaseURL != "":
		return interviews.NewHTTPProvider(cfg.ProviderBaseURL, cfg.ProviderAPIKey, cfg.ProviderTimeout)
	case config.IsDevLike(cfg.Env):
		telemetry.Warn("bootstrap.provider_local", map[string]any{"reason": "PROVIDER_BASE_URL empty"})
		return interviews.LocalProvider{}, nil
	default:
		return interviews.UnconfiguredProvider{}, nil
	}
}

func buildServices(app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.JobsRepo = &jobs.PGRepo{DB: app.DB.DB()}
		app.ApplicationsRepo = &applications.PGRepo{DB: app.DB.DB()}
	} else {
		jobRepo := jobs.NewMemoryRepo()
		app.JobsRepo = jobRepo
		app.ApplicationsRepo = applications.NewMemoryRepo(jobRepo)
	}
	app.JobsRepo = jobs.Bounded(app.JobsRepo, cfg.PersistenceTimeout)
	app.ApplicationsRepo = applications.Bounded(app.ApplicationsRepo, cfg.PersistenceTimeout)

	if app.Cache != nil {
		app.Ledger = webhooks.NewRedisLedger(app.Cache.Client, cfg.WebhookDedupeTTL)
	} else {
		app.Ledger = webhooks.NewMemoryLedger(cfg.WebhookDedupeTTL)
	}

	orch := interviews.NewOrchestrator(app.ApplicationsRepo, app.JobsRepo, app.Provider)
	orch.CallbackURL = cfg.ProviderCallbackURL
	if cfg.PersistenceTimeout > 0 {
		orch.PersistenceTimeout = cfg.PersistenceTimeout
	}

	agg := scoring.NewAggregator(app.ApplicationsRepo, app.JobsRepo, scoring.WeightedBlend{
		InterviewWeight: cfg.InterviewWeight,
		ResumeWeight:    cfg.ResumeWeight,
	})

	appSvc := applications.NewService(app.ApplicationsRepo, app.JobsRepo)
	var scorer webhooks.FinalScorer = agg
	if app.Queue != nil {
		appSvc.Scheduler = queueScheduler{queue: app.Queue}
		scorer = queueScorer{queue: app.Queue, fallback: agg}
	} else {
		appSvc.Scheduler = inlineScheduler{starter: orch}
	}

	app.JobsService = jobs.NewService(app.JobsRepo)
	app.ApplicationsService = appSvc
	app.Orchestrator = orch
	app.Aggregator = agg
	app.Reconciler = webhooks.NewReconciler(app.ApplicationsRepo, app.Ledger, scorer, cfg.MaxInterviewFailures)
	app.Dispatcher = &workerproc.Dispatcher{Sessions: orch, Scores: agg}

	app.JobsHandler = jobs.NewHandler(app.JobsService)
	app.ApplicationsHandler = applications.NewHandler(appSvc)
	app.InterviewsHandler = interviews.NewHandler(orch, middleware.NewRateLimiter(nil))
	app.ScoringHandler = scoring.NewHandler(agg, cfg.InternalAPIToken)
	app.WebhooksHandler = webhooks.NewHandler(app.Reconciler, cfg.WebhookSecret)
	return nil
}
