package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/storefront-bot/internal/balance"
	"github.com/Proton-105/storefront-bot/internal/bot"
	"github.com/Proton-105/storefront-bot/internal/catalog"
	"github.com/Proton-105/storefront-bot/internal/database"
	"github.com/Proton-105/storefront-bot/internal/engine"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/health"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
	"github.com/Proton-105/storefront-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/storefront-bot/internal/jobs/handlers"
	"github.com/Proton-105/storefront-bot/internal/lifecycle"
	"github.com/Proton-105/storefront-bot/internal/middleware"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/ops"
	"github.com/Proton-105/storefront-bot/internal/order"
	"github.com/Proton-105/storefront-bot/internal/promo"
	"github.com/Proton-105/storefront-bot/internal/ratelimit"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/pkg/config"
	"github.com/Proton-105/storefront-bot/pkg/graceful"
	"github.com/Proton-105/storefront-bot/pkg/logger"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
	"github.com/Proton-105/storefront-bot/pkg/redis"
)

const (
	idempotencyTTL        = 24 * time.Hour
	startupReminderDelay  = time.Minute
	limiterMaxAge         = 5 * time.Minute
	sentryFlushTimeout    = 2 * time.Second
	httpReadHeaderTimeout = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront bot: %v\n", err)
		os.Exit(1)
	}
}

// stores are the backends picked by configuration.
type stores struct {
	redis    *goredis.Client
	balances balance.Store
	orders   order.Ledger
	promos   promo.Store
	states   state.Storage
	dedup    idempotency.Store
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	log.Info("starting storefront bot", slog.String("mode", cfg.Bot.Mode), slog.Int("admins", len(cfg.Bot.Admins)))

	config.Watch(v, func(next *config.Config) {
		logger.SetLevel(next.Logger.Level)
		log.Info("configuration reloaded", slog.String("log_level", next.Logger.Level))
	}, func(err error) {
		log.Warn("ignoring invalid configuration change", slog.Any("error", err))
	})

	shutdown := lifecycle.NewShutdown(log)
	checker := health.NewChecker(log)

	st, err := openStores(ctx, cfg, log, shutdown, checker)
	if err != nil {
		_ = shutdown.Execute(context.Background())
		return err
	}

	offers := cfg.Shop.Offers
	if len(offers) == 0 {
		log.Warn("no offers configured, using the stock price list")
		offers = catalog.Default()
	}
	cat, err := catalog.New(offers)
	if err != nil {
		_ = shutdown.Execute(context.Background())
		return fmt.Errorf("build catalog: %w", err)
	}

	tb, err := bot.NewTelebot(*cfg, log)
	if err != nil {
		_ = shutdown.Execute(context.Background())
		return err
	}
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))

	sender := notify.NewTelegramSender(tb, apperrors.NewCircuitBreaker(), log)
	dispatcher := notify.NewDispatcher(sender, cfg.Bot.Admins, cfg.Notify.SendTimeout, cfg.Notify.Retries, log)

	fsm := state.NewStateMachine(st.states, log, st.redis, cfg.Engine.LockWait,
		state.WithLockTTL(3*cfg.Engine.OperationTimeout))
	eng := engine.New(engine.Deps{
		FSM:        fsm,
		Balances:   st.balances,
		Orders:     st.orders,
		Promos:     st.promos,
		Catalog:    cat,
		Dispatcher: dispatcher,
		Log:        log,
	}, cfg)

	local := ratelimit.NewMemoryLimiter(log)
	limiter := local
	if st.redis != nil {
		limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(st.redis, log), local, log)
	}

	b := bot.New(tb, *cfg, log, bot.Deps{
		Engine:      eng,
		Catalog:     cat,
		FSM:         fsm,
		Idempotency: idempotency.NewManager(st.dedup, idempotencyTTL, log),
		RateLimit:   middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log),
	})

	reminder := jobhandlers.NewPendingReminderHandler(st.orders, dispatcher, eng.Texts(), log)
	if err := startJobs(ctx, cfg, log, st, reminder, shutdown); err != nil {
		_ = shutdown.Execute(context.Background())
		return err
	}

	go state.NewCleaner(st.states, log, cfg.Jobs.StateTTL, cfg.Jobs.CleanupInterval).Run(ctx)
	go idempotency.NewCleaner(st.dedup, log, cfg.Jobs.CleanupInterval).Run(ctx)
	go metrics.NewStateCollector(fsm).Run(ctx)
	if st.redis != nil {
		go ratelimit.NewCleaner(st.redis, log, cfg.Jobs.CleanupInterval, limiterMaxAge).Run(ctx)
	}
	if mem, ok := local.(*ratelimit.MemoryLimiter); ok {
		go sweepMemoryLimiter(ctx, mem, cfg.Jobs.CleanupInterval)
	}

	probes := lifecycle.NewProbes(checker, log)
	server := graceful.NewServer(log, &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           ops.NewRouter(probes, log),
		ReadHeaderTimeout: httpReadHeaderTimeout,
	}, cfg.Server.ShutdownTimeout)

	serverErr := make(chan error, 1)
	go func() { serverErr <- server.ListenAndServe(ctx) }()

	go b.Start()
	shutdown.Register("telegram bot", b.Shutdown)
	log.Info("storefront bot started", slog.String("ops_addr", cfg.Server.Port))

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			log.Error("ops server stopped", slog.Any("error", err))
		}
		stop()
	}

	probes.Drain()
	log.Info("shutting down storefront bot")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return shutdown.Execute(shutdownCtx)
}

// openStores connects the configured backends and falls back to process memory for the rest.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger, shutdown *lifecycle.Shutdown, checker *health.Checker) (*stores, error) {
	st := &stores{}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		shutdown.Closer("redis", client.Close)
		checker.AddCheck("redis", health.NewRedisChecker(client))

		st.redis = client
		st.states = state.NewRedisStorage(client, log, cfg.Jobs.StateTTL)
		st.promos = promo.NewRedisStore(client, log)
		st.dedup = idempotency.NewRedisStore(client, log)
	} else {
		log.Warn("redis disabled: sessions, promo codes and locks are kept in memory")
		st.states = state.NewMemoryStorage()
		st.promos = promo.NewMemoryStore()
		st.dedup = idempotency.NewMemoryStore()
	}

	if cfg.Mongo.Enabled {
		client, err := balance.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Timeout)
		if err != nil {
			return nil, err
		}
		shutdown.Register("mongo", client.Disconnect)

		store := balance.NewMongoStore(client, cfg.Mongo.Database)
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("prepare account indexes: %w", err)
		}
		checker.AddCheck("mongo", store)
		st.balances = store
	} else {
		log.Warn("mongo disabled: balances are kept in memory")
		st.balances = balance.NewMemoryStore()
	}

	if cfg.Postgres.Enabled {
		db, err := database.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, err
		}
		shutdown.Closer("postgres", db.Close)

		if err := database.NewMigrator(db, log).Apply(ctx, order.Migrations, order.MigrationsDir); err != nil {
			return nil, fmt.Errorf("apply ledger migrations: %w", err)
		}
		ledger := order.NewPostgresLedger(db, log)
		checker.AddCheck("postgres", ledger)
		st.orders = ledger
	} else {
		log.Warn("postgres disabled: orders are kept in memory")
		st.orders = order.NewMemoryLedger()
	}

	return st, nil
}

// startJobs runs the pending order reminder: through the Redis backed queue when
// Redis is enabled, on an in-process cron otherwise.
func startJobs(ctx context.Context, cfg *config.Config, log *slog.Logger, st *stores, reminder *jobhandlers.PendingReminderHandler, shutdown *lifecycle.Shutdown) error {
	if cfg.Jobs.ReminderSchedule == "" {
		log.Info("pending order reminder disabled")
		return nil
	}

	if st.redis == nil {
		runner := jobs.NewCronRunner(log)
		err := runner.Every(ctx, cfg.Jobs.ReminderSchedule, jobs.TaskTypePendingReminder, func(ctx context.Context) error {
			_, err := reminder.Run(ctx, cfg.Jobs.ReminderAfter)
			return err
		})
		if err != nil {
			return err
		}
		runner.Start()
		shutdown.Register("cron", runner.Stop)
		return nil
	}

	redisOpt := redis.AsynqOpt(cfg.Redis)

	worker := jobs.NewWorker(redisOpt, jobs.Queues, cfg.Jobs.WorkerConcurrency, log)
	worker.RegisterHandler(jobs.TaskTypePendingReminder, reminder)
	if err := worker.Run(); err != nil {
		return fmt.Errorf("start jobs worker: %w", err)
	}
	shutdown.Register("jobs worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.ReminderSchedule, cfg.Jobs.ReminderAfter, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled jobs: %w", err)
	}
	scheduler.Run()
	shutdown.Register("jobs scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	client := jobs.NewManager(redisOpt, log)
	shutdown.Closer("jobs client", client.Close)
	if err := jobs.EnqueueStartupReminder(ctx, client, cfg.Jobs.ReminderAfter, startupReminderDelay); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("failed to enqueue startup reminder", slog.Any("error", err))
	}
	return nil
}

func sweepMemoryLimiter(ctx context.Context, limiter *ratelimit.MemoryLimiter, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(limiterMaxAge)
		}
	}
}
