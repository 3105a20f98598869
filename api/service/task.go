package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
	"videoDownloader/api/models"
	"videoDownloader/api/repository"
	"videoDownloader/worker/pool"
	worker "videoDownloader/worker/service"
)

var ErrShuttingDown = errors.New("service is shutting down")

type Processor interface {
	Process(ctx context.Context, job worker.Job) models.TaskStatus
}

// CookieSource reports the shared cookies file, if any.
type CookieSource interface {
	Path() (string, bool)
}

type TaskService struct {
	repo      repository.Repository
	processor Processor
	pool      *pool.WorkerPool[worker.Job]
	cookies   CookieSource
	logger    *zap.Logger
}

func NewTaskService(repo repository.Repository, processor Processor, workers *pool.WorkerPool[worker.Job], cookies CookieSource, logger *zap.Logger) *TaskService {
	return &TaskService{
		repo:      repo,
		processor: processor,
		pool:      workers,
		cookies:   cookies,
		logger:    logger,
	}
}

// CreateTask registers a queued task and schedules its pipeline. It returns
// as soon as the job is submitted; the request ending does not cancel it.
func (s *TaskService) CreateTask(ctx context.Context, traceID string, req *dto.DownloadRequest) (*dto.DownloadResponse, error) {
	task := &models.Task{
		TraceID: traceID,
		URL:     req.URL,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	job := worker.Job{
		TaskID:  task.ID,
		TraceID: traceID,
		URL:     task.URL,
		Cookies: req.Cookies,
	}
	if path, ok := s.cookies.Path(); ok {
		job.CookieFile = path
	}

	err := s.pool.Submit(context.WithoutCancel(ctx), job, func(ctx context.Context, job worker.Job) {
		s.processor.Process(ctx, job)
	})
	if err != nil {
		s.logger.Error("Failed to schedule task", zap.String("task_id", task.ID), zap.Error(err))
		_, _ = s.repo.UpdateTask(ctx, task.ID, models.TaskUpdate{
			Status:          models.StatusFailed,
			ProgressMessage: "Failed",
			Error:           &models.TaskError{Kind: models.KindUnknown, Message: err.Error()},
		})
		if errors.Is(err, pool.ErrPoolClosed) {
			return nil, ErrShuttingDown
		}
		return nil, err
	}

	s.logger.Info("Task queued",
		zap.String("task_id", task.ID),
		zap.String("trace_id", traceID),
		zap.String("url", task.URL),
	)

	return &dto.DownloadResponse{
		TaskID: task.ID,
		Status: string(task.Status),
	}, nil
}

func (s *TaskService) GetTaskStatus(ctx context.Context, taskID string) (*dto.TaskResponse, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return dto.FromTask(task), nil
}
