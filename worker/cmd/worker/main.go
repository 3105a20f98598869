package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"videoDownloader/api/config"
	"videoDownloader/api/dto"
	"videoDownloader/api/logger"
	"videoDownloader/api/models"
	"videoDownloader/api/repository"
	worker "videoDownloader/worker/service"
)

var errTaskFailed = errors.New("task failed")

func main() {
	var (
		configPath string
		cookieFile string
	)

	cmd := &cobra.Command{
		Use:           "worker <url>",
		Short:         "Download, transcode and upload one video, then print the task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, args[0], cookieFile)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to config.yaml")
	cmd.Flags().StringVar(&cookieFile, "cookies", "", "Netscape cookies file to authenticate with")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTaskFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, url, cookieFile string) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	if err := cfg.Worker.EnsureDirs(); err != nil {
		return err
	}

	repo := repository.NewMemoryRepo().WithLogger(log)
	repo.Subscribe(func(task *models.Task) {
		log.Info("Task updated",
			zap.String("task_id", task.ID),
			zap.String("status", string(task.Status)),
			zap.String("message", task.ProgressMessage),
		)
	})

	processor, err := worker.Build(&cfg.Worker, &cfg.Storage, repo, log)
	if err != nil {
		return err
	}

	task := &models.Task{URL: url}
	if err := repo.CreateTask(ctx, task); err != nil {
		return err
	}

	status := processor.Process(ctx, worker.Job{
		TaskID:     task.ID,
		URL:        url,
		CookieFile: cookieFile,
	})

	final, err := repo.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dto.FromTask(final)); err != nil {
		return err
	}

	if status != models.StatusCompleted {
		return errTaskFailed
	}
	return nil
}
