package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tradeline/internal/analytics"
	"tradeline/internal/auth"
	"tradeline/internal/config"
	"tradeline/internal/jobs"
	"tradeline/internal/lifecycle"
	"tradeline/internal/ratelimit"
	"tradeline/internal/telephony"
	"tradeline/pkg/logger"
	"tradeline/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	log, logCloser := logger.New(cfg.App.Env, logger.Options{File: cfg.Log.File})
	defer logCloser.Close()
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("auth init: %w", err)
	}

	db, err := utils.OpenPostgresWithRetry(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{}, cfg.DB.ConnectAttempts, log)
	if err != nil {
		return fmt.Errorf("postgres init: %w", err)
	}
	defer db.Close()

	version, err := utils.MigrateUp(cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("schema ready", "version", version)

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.DB.ConnectAttempts, log)
	if err != nil {
		return fmt.Errorf("redis init: %w", err)
	}
	defer rdb.Close()

	d, err := wire(cfg, db, rdb, authManager, log)
	if err != nil {
		return err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log, "/healthz", "/metrics"))
	registerRoutes(r, d)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	if d.worker != nil {
		g.Go(func() error { return d.worker.Run(ctx) })
	} else {
		log.Warn("TRANSCRIPTION_ENDPOINT not set, job worker disabled")
	}

	return g.Wait()
}

// deps is everything the routes need, built once at startup.
type deps struct {
	db        *sql.DB
	rdb       *redis.Client
	auth      *auth.Manager
	limiter   *ratelimit.Limiter
	lifecycle lifecycle.Store
	queue     jobs.Queue
	enqueuer  *jobs.BreakerEnqueuer
	webhooks  telephony.WebhookHandler
	worker    *jobs.Worker
	dispatch  *jobs.BreakerHandler
}

func wire(cfg config.Config, db *sql.DB, rdb *redis.Client, am *auth.Manager, log *slog.Logger) (deps, error) {
	store := lifecycle.NewPostgresStore(db)
	queue := jobs.NewPostgresQueue(db)
	enq := jobs.NewBreakerEnqueuer(queue, jobs.BreakerConfig{
		Name:                "job_enqueue",
		ConsecutiveFailures: cfg.Breaker.Failures,
		Timeout:             cfg.Breaker.Timeout,
	}, log)
	recorder := lifecycle.NewRecorder(store, enq, lifecycle.WithMonotonicGuard(cfg.Lifecycle.MonotonicGuard))

	d := deps{
		db:        db,
		rdb:       rdb,
		auth:      am,
		limiter:   ratelimit.New(rdb, cfg.Webhook.RateLimit, cfg.Webhook.RateWindow),
		lifecycle: store,
		queue:     queue,
		enqueuer:  enq,
		webhooks: telephony.WebhookHandler{
			AuthToken:     cfg.Twilio.AuthToken,
			PublicBaseURL: cfg.Twilio.PublicBaseURL,
			Recorder:      recorder,
			Analytics:     analytics.NewService(analytics.NewPostgresRepo(db)),
		},
	}

	if cfg.Jobs.TranscriptionEndpoint == "" {
		return d, nil
	}
	w, dispatch, err := newWorker(cfg, queue, log)
	if err != nil {
		return deps{}, err
	}
	d.worker, d.dispatch = w, dispatch
	return d, nil
}

func newWorker(cfg config.Config, queue jobs.Queue, log *slog.Logger) (*jobs.Worker, *jobs.BreakerHandler, error) {
	transcriber, err := jobs.NewTranscriptionDispatcher(cfg.Jobs.TranscriptionEndpoint, cfg.Jobs.TranscriptionTimeout)
	if err != nil {
		return nil, nil, err
	}
	dispatch := jobs.NewBreakerHandler(transcriber, jobs.BreakerConfig{
		Name:                "transcription_dispatch",
		ConsecutiveFailures: cfg.Breaker.Failures,
		Timeout:             cfg.Breaker.Timeout,
	}, log)

	w, err := jobs.NewWorker(queue, jobs.WorkerConfig{
		PollInterval: cfg.Jobs.PollInterval,
		BatchSize:    cfg.Jobs.BatchSize,
		MaxAttempts:  cfg.Jobs.MaxAttempts,
		PoolSize:     cfg.Jobs.PoolSize,
		JobTimeout:   cfg.Jobs.TranscriptionTimeout + 5*time.Second,
	}, log)
	if err != nil {
		return nil, nil, fmt.Errorf("job worker: %w", err)
	}
	w.Register(jobs.OpTranscribeRecording, dispatch)
	return w, dispatch, nil
}
