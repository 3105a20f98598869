package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"videoDownloader/api/models"
)

const queuedMessage = "Queued"

// MemoryRepo is the process-local task registry. A single lock guards the
// whole map; every operation on it is a few field copies.
type MemoryRepo struct {
	mu        sync.RWMutex
	tasks     map[string]*models.Task
	listeners []Listener
	now       func() time.Time
	logger    *zap.Logger
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		tasks:  make(map[string]*models.Task),
		now:    time.Now,
		logger: zap.NewNop(),
	}
}

// WithLogger sets where listener panics are reported. Call it before the
// repo is shared.
func (r *MemoryRepo) WithLogger(logger *zap.Logger) *MemoryRepo {
	r.logger = logger
	return r
}

// Subscribe registers a listener. Listeners run synchronously on the
// goroutine that made the change, after the lock is released. A panicking
// listener is logged and skipped; the change stays committed.
func (r *MemoryRepo) Subscribe(listener Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, listener)
}

// CreateTask assigns a fresh identifier and stores task in the queued state.
// Caller-provided ID, status and result fields are ignored.
func (r *MemoryRepo) CreateTask(ctx context.Context, task *models.Task) error {
	if task == nil {
		return fmt.Errorf("create task: %w", ErrInvalidUpdate)
	}

	now := r.now()
	task.ID = uuid.New().String()
	task.Status = models.StatusQueued
	task.ProgressMessage = queuedMessage
	task.ResultURL = ""
	task.ThumbnailURL = ""
	task.Error = nil
	task.CreatedAt = now
	task.UpdatedAt = now

	r.mu.Lock()
	if _, exists := r.tasks[task.ID]; exists {
		r.mu.Unlock()
		return ErrTaskAlreadyExists
	}
	r.tasks[task.ID] = task.Clone()
	listeners := r.listeners
	r.mu.Unlock()

	r.notify(listeners, task.Clone())
	return nil
}

func (r *MemoryRepo) GetTask(ctx context.Context, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return task.Clone(), nil
}

// UpdateTask applies update atomically and returns the new snapshot.
func (r *MemoryRepo) UpdateTask(ctx context.Context, id string, update models.TaskUpdate) (*models.Task, error) {
	if err := checkUpdate(update); err != nil {
		return nil, err
	}

	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return nil, ErrTaskNotFound
	}
	if task.Status.IsTerminal() {
		r.mu.Unlock()
		return nil, fmt.Errorf("update %s: %w", task.Status, ErrTaskTerminal)
	}
	if !task.Status.CanTransition(update.Status) {
		r.mu.Unlock()
		return nil, fmt.Errorf("%s -> %s: %w", task.Status, update.Status, ErrInvalidTransition)
	}

	task.Status = update.Status
	if update.ProgressMessage != "" {
		task.ProgressMessage = update.ProgressMessage
	}
	if update.ResultURL != "" {
		task.ResultURL = update.ResultURL
	}
	if update.ThumbnailURL != "" {
		task.ThumbnailURL = update.ThumbnailURL
	}
	if update.Error != nil {
		e := *update.Error
		task.Error = &e
	}
	task.UpdatedAt = r.now()

	snapshot := task.Clone()
	listeners := r.listeners
	r.mu.Unlock()

	r.notify(listeners, snapshot.Clone())
	return snapshot, nil
}

// checkUpdate keeps result_url and error tied to their terminal states.
func checkUpdate(u models.TaskUpdate) error {
	switch {
	case u.Status == models.StatusCompleted && u.ResultURL == "":
		return fmt.Errorf("completed without result url: %w", ErrInvalidUpdate)
	case u.Status != models.StatusCompleted && (u.ResultURL != "" || u.ThumbnailURL != ""):
		return fmt.Errorf("result url on %s: %w", u.Status, ErrInvalidUpdate)
	case u.Status == models.StatusFailed && u.Error == nil:
		return fmt.Errorf("failed without error: %w", ErrInvalidUpdate)
	case u.Status != models.StatusFailed && u.Error != nil:
		return fmt.Errorf("error on %s: %w", u.Status, ErrInvalidUpdate)
	}
	return nil
}

func (r *MemoryRepo) notify(listeners []Listener, task *models.Task) {
	for _, l := range listeners {
		r.call(l, task.Clone())
	}
}

func (r *MemoryRepo) call(l Listener, task *models.Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Task listener panicked",
				zap.String("task_id", task.ID),
				zap.String("status", string(task.Status)),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()
	l(task)
}
