package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"videoDownloader/api/cache"
	"videoDownloader/api/config"
	"videoDownloader/api/database"
	"videoDownloader/api/handlers"
	"videoDownloader/api/kafka"
	"videoDownloader/api/logger"
	"videoDownloader/api/middleware"
	"videoDownloader/api/repository"
	"videoDownloader/api/service"
	"videoDownloader/worker/cookies"
	"videoDownloader/worker/janitor"
	"videoDownloader/worker/pool"
	worker "videoDownloader/worker/service"
	"videoDownloader/worker/tasklog"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath string
		port       string
	)

	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Video download, transcode and upload API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}
			return run(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides config)")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Worker.EnsureDirs(); err != nil {
		return err
	}

	ctx := context.Background()
	repo := repository.NewMemoryRepo().WithLogger(log)

	processor, err := worker.Build(&cfg.Worker, &cfg.Storage, repo, log)
	if err != nil {
		return err
	}

	closers, err := attachBackends(ctx, cfg, repo, processor, log)
	defer func() {
		for _, c := range closers {
			c()
		}
	}()
	if err != nil {
		return err
	}

	sweeper := janitor.New([]string{cfg.Worker.TempDir, cfg.Worker.ConvertedDir}, cfg.Worker.TempMaxAge, log)
	sweeper.Sweep()
	if err := sweeper.Start(cfg.Worker.SweepInterval); err != nil {
		return err
	}
	defer sweeper.Stop()

	workers := pool.NewWorkerPool[worker.Job](cfg.Worker.WorkerCount)
	cookieStore := cookies.NewStore(cfg.Worker.CookiesPath)

	taskService := service.NewTaskService(repo, processor, workers, cookieStore, log)
	cookieService := service.NewCookieService(cookieStore, log)

	mux := http.NewServeMux()
	handlers.Routes(mux,
		handlers.NewTaskHandler(taskService, log),
		handlers.NewCookieHandler(cookieService, cfg.Server.MaxCookieBytes, log),
		cfg.Server.Version,
	)

	srv := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: middleware.Chain(mux,
			middleware.Recovery(log),
			middleware.TraceID,
			middleware.Logging(log),
			middleware.CORS,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API Service starting",
			zap.String("address", srv.Addr),
			zap.String("env", cfg.Server.Env),
			zap.Int("workers", cfg.Worker.WorkerCount),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var serveErr error
	select {
	case err := <-errCh:
		serveErr = fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	workers.Close()
	running, waiting := workers.Stats()
	log.Info("Waiting for jobs", zap.Int64("running", running), zap.Int64("waiting", waiting))
	workers.Wait()

	log.Info("Server exited")
	return serveErr
}

// attachBackends connects the optional observers of task state. Each one is
// enabled only when its address is configured.
func attachBackends(ctx context.Context, cfg *config.Config, repo repository.Repository, processor *worker.Processor, log *zap.Logger) ([]func(), error) {
	var closers []func()

	if cfg.Redis.Addr != "" {
		redisCache, err := database.ConnectCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return closers, err
		}
		closers = append(closers, func() { redisCache.Close() })
		repo.Subscribe(cache.NewStatusCache(redisCache, cfg.Redis.TTL, log).Listener())
		log.Info("Status mirror enabled", zap.String("redis", cfg.Redis.Addr))
	}

	if brokers := cfg.Kafka.BrokerList(); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			return closers, fmt.Errorf("connect kafka: %w", err)
		}
		closers = append(closers, func() { producer.Close() })
		repo.Subscribe(kafka.Listener(producer, cfg.Kafka.Topic, log))
		log.Info("Task events enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.Kafka.Topic))
	}

	if cfg.Database.URL != "" {
		db, err := database.ConnectPostgres(ctx, cfg.Database.URL)
		if err != nil {
			return closers, err
		}
		closers = append(closers, db.Close)
		sink := tasklog.NewPostgresSink(db)
		if err := sink.Migrate(ctx); err != nil {
			return closers, err
		}
		processor.WithSinks(sink)
		log.Info("Task log store enabled")
	}

	return closers, nil
}
