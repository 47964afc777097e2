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

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/agristock/agristock/cmd/agristock/cli"
	"github.com/agristock/agristock/internal/app"
	"github.com/agristock/agristock/internal/auth"
	"github.com/agristock/agristock/internal/dashboard"
	"github.com/agristock/agristock/internal/inventory"
	"github.com/agristock/agristock/internal/observability"
	"github.com/agristock/agristock/internal/platform/cache"
	"github.com/agristock/agristock/internal/platform/db"
	"github.com/agristock/agristock/internal/rbac"
	"github.com/agristock/agristock/internal/shared"
	"github.com/agristock/agristock/internal/users"
	"github.com/agristock/agristock/internal/view"
	"github.com/agristock/agristock/jobs"
)

const sessionCookieName = "agristock_session"

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// runCommand handles the operational subcommands:
//
//	agristock jobs stats
//	agristock jobs trigger activity:prune
func runCommand(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) < 2 || args[0] != "jobs" {
		return fmt.Errorf("usage: agristock jobs stats | agristock jobs trigger <task>")
	}
	ops := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = ops.Close() }()

	switch args[1] {
	case "stats":
		stats, err := ops.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		scheduled, err := ops.ListScheduled(ctx, 20)
		if err != nil {
			return err
		}
		for _, task := range scheduled {
			fmt.Printf("scheduled %s id=%s next=%s\n", task.Type, task.ID, task.NextProcessAt.Format(time.RFC3339))
		}
		return nil
	case "trigger":
		if len(args) < 3 {
			return errors.New("jobs trigger: task name required")
		}
		info, err := ops.Trigger(ctx, args[2], cfg.ActivityRetention)
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
		return nil
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[1])
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.WithMaxConns(cfg.PGMaxConns))
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool, logger); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, sessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Logger: logger}

	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), logger, metrics)
	templates, err := view.NewEngine()
	if err != nil {
		return err
	}
	templates.WithShell(dashboardService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	resetTokens := auth.NewRedisResetTokens(redisClient, cfg.PasswordResetTTL)
	authService := auth.NewService(auth.NewRepository(pool), resetTokens, jobClient, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(pool), logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      auth.NewHandler(logger, authService, templates, sessionManager, csrfManager),
		DashboardHandler: dashboard.NewHandler(logger, dashboardService, inventoryService, templates, csrfManager, rbacMiddleware),
		InventoryHandler: inventory.NewHandler(logger, inventoryService, templates, csrfManager, rbacMiddleware),
		UsersHandler:     users.NewHandler(logger, users.NewService(users.NewRepository(pool), logger), templates, csrfManager, rbacMiddleware),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
