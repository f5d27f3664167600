package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dororo-lms/lms-backend/config"
	"github.com/dororo-lms/lms-backend/internal/application/command"
	"github.com/dororo-lms/lms-backend/internal/application/eventhandler"
	"github.com/dororo-lms/lms-backend/internal/application/query"
	"github.com/dororo-lms/lms-backend/internal/domain/gamification"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/external/solvedac"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/messaging"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/persistence/memory"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/persistence/postgres"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/persistence/redis"
	"github.com/dororo-lms/lms-backend/internal/infrastructure/service"
	httpserver "github.com/dororo-lms/lms-backend/internal/interface/http"
	"github.com/dororo-lms/lms-backend/internal/interface/http/handlers"
	"github.com/dororo-lms/lms-backend/pkg/logger"
	"github.com/dororo-lms/lms-backend/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVE
// ══════════════════════════════════════════════════════════════════════════════

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

// stores groups the repositories the handlers are built on.
type stores struct {
	profiles    gamification.ProfileRepository
	attendance  gamification.AttendanceRepository
	ledger      gamification.LedgerRepository
	progressLog gamification.ProgressLog
	accounts    gamification.AccountDirectory
	submissions gamification.SubmissionCounter
}

func serve(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting LMS gamification API",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	clock := timeutil.NewClock(cfg.App.Location)
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Persistence
	// ─────────────────────────────────────────────────────────────────────────
	var st stores
	if cfg.Database.URL == "" {
		if !cfg.IsDevelopment() {
			return errors.New("DATABASE_URL is required outside development")
		}
		log.Warn("DATABASE_URL not set, using in-memory store")
		st = memoryStores()
	} else {
		conn, err := postgres.NewConnection(ctx, postgresConfig(cfg.Database))
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()
		log.Info("database connection established")

		if cfg.Database.AutoMigrate {
			ran, err := postgres.NewMigrator(conn).Migrate(ctx)
			if err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date", logger.Int("applied", ran))
		}

		st = postgresStores(conn)
		health.AddCheck("database", handlers.NewPingCheck(conn))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Redis: per-user lock and challenge cache
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker         command.UserLocker = memory.NewUserLocker()
		challengeCache query.ChallengeCache
	)
	if !cfg.Redis.Disabled {
		cache, err := redis.NewCache(redisConfig(cfg.Redis))
		switch {
		case err == nil:
			defer cache.Close()
			locker = redis.NewUserLocker(cache, cfg.Redis.LockTTL, log)
			challengeCache = redis.NewChallengeCache(cache)
			health.AddCheck("redis", handlers.NewPingCheck(cache))
			log.Info("redis connection established")
		case cfg.IsProduction():
			return fmt.Errorf("failed to connect to redis: %w", err)
		default:
			log.Warn("redis unavailable, using in-process locks", logger.Err(err))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.Logger = log
	bus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		_ = bus.Close()
		if m := bus.Metrics(); m != nil {
			snap := m.Snapshot()
			log.Info("event bus closed",
				logger.Any("published", snap.TotalPublished),
				logger.Any("handler_failures", snap.HandlerFailures),
			)
		}
	}()

	audit := eventhandler.NewProgressAuditHandler(st.progressLog, log, eventhandler.DefaultProgressAuditConfig())
	if err := audit.Register(bus); err != nil {
		return fmt.Errorf("failed to register progress audit: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. solved.ac
	// ─────────────────────────────────────────────────────────────────────────
	sc := cfg.SolvedAc
	solvedClient := solvedac.NewClient(solvedac.ClientConfig{
		BaseURL:           sc.BaseURL,
		UserAgent:         sc.UserAgent,
		Timeout:           sc.RequestTimeout,
		MaxAttempts:       sc.MaxRetries,
		RetryBaseDelay:    sc.RetryBaseDelay,
		BreakerThreshold:  sc.CircuitBreakerThreshold,
		BreakerTimeout:    sc.CircuitBreakerTimeout,
		RequestsPerSecond: sc.RequestsPerSecond,
		Burst:             sc.Burst,
		Logger:            log,
	})
	solved := service.NewSolvedAcAdapter(solvedClient)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Application handlers
	// ─────────────────────────────────────────────────────────────────────────
	rules := gamification.DefaultRules()
	rules.AttendancePoints = cfg.Gamification.AttendancePoints
	rules.AssignmentPoints = cfg.Gamification.AssignmentPoints
	rules.ProblemPoints = cfg.Gamification.ProblemPoints
	rules.MaxScore = cfg.Gamification.MaxScore

	engine, err := gamification.NewEngine(rules)
	if err != nil {
		return fmt.Errorf("invalid gamification rules: %w", err)
	}

	reconciler := command.NewReconcileSolvedHandler(
		st.accounts, solved, st.ledger, bus, clock, log,
		command.ReconcileSolvedHandlerConfig{CreditEnabled: cfg.Features.SolvedAcCreditEnabled()},
	)
	refresh := command.NewRefreshStatusHandler(command.RefreshStatusDeps{
		Engine:         engine,
		Attendance:     st.attendance,
		Submissions:    st.submissions,
		Ledger:         st.ledger,
		Reconciler:     reconciler,
		Profiles:       st.profiles,
		Locker:         locker,
		EventPublisher: bus,
		Clock:          clock,
		Logger:         log,
	})

	deps := httpserver.Dependencies{
		RecordAccess:      command.NewRecordAccessHandler(st.attendance, bus, clock, log),
		ConfirmAttendance: command.NewConfirmAttendanceHandler(st.attendance, refresh, bus, clock, log),
		AttendanceStatus:  query.NewAttendanceStatusHandler(st.attendance, log),
		TodayAttendance:   query.NewTodayAttendanceHandler(st.attendance, clock),
		MyLevel:           query.NewMyLevelHandler(refresh),
		AttendanceMap:     query.NewAttendanceMapHandler(st.attendance, clock),
		Challenge: query.NewChallengeHandler(st.accounts, solved, challengeCache, query.ChallengeHandlerConfig{
			ProblemLimit: sc.RecentProblemsLimit,
			CacheTTL:     sc.CacheTTL,
		}, log),
		Features:      cfg.Features,
		HealthChecker: health,
		BreakerState: func() string {
			return solvedClient.BreakerState().String()
		},
		Logger: log,
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HTTP server & graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	server := httpserver.NewServer(httpConfig(cfg), deps)
	errCh := server.StartAsync()

	log.Info("LMS gamification API is running", logger.String("address", server.Address()))

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Err(err))
	}
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRING
// ══════════════════════════════════════════════════════════════════════════════

func postgresStores(conn *postgres.Connection) stores {
	accounts := postgres.NewAccountRepository(conn)
	return stores{
		profiles:    postgres.NewProfileRepository(conn),
		attendance:  postgres.NewAttendanceRepository(conn),
		ledger:      postgres.NewLedgerRepository(conn),
		progressLog: postgres.NewProgressLogRepository(conn),
		accounts:    accounts,
		submissions: accounts,
	}
}

func memoryStores() stores {
	accounts := memory.NewAccountStore()
	return stores{
		profiles:    memory.NewProfileRepository(),
		attendance:  memory.NewAttendanceRepository(),
		ledger:      memory.NewLedgerRepository(),
		progressLog: memory.NewProgressLog(1000),
		accounts:    accounts,
		submissions: accounts,
	}
}

func redisConfig(rc config.RedisConfig) redis.Config {
	r := redis.DefaultConfig()
	r.Host = rc.Host
	r.Port = rc.Port
	r.Password = rc.Password
	r.DB = rc.DB
	r.PoolSize = rc.PoolSize
	r.MinIdleConns = rc.MinIdleConns
	r.DialTimeout = rc.DialTimeout
	r.ReadTimeout = rc.ReadTimeout
	r.WriteTimeout = rc.WriteTimeout
	return r
}

func httpConfig(cfg *config.Config) httpserver.Config {
	h := httpserver.DefaultConfig()
	h.Host = cfg.HTTP.Host
	h.Port = cfg.HTTP.Port
	h.ReadTimeout = cfg.HTTP.ReadTimeout
	h.WriteTimeout = cfg.HTTP.WriteTimeout
	h.IdleTimeout = cfg.HTTP.IdleTimeout
	h.AllowedOrigins = cfg.HTTP.AllowedOrigins
	h.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute
	h.UserHeader = cfg.HTTP.UserHeader
	h.Version = cfg.App.Version
	return h
}
