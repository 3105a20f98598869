package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"videoDownloader/api/dto"
	"videoDownloader/api/models"
	"videoDownloader/api/repository"
)

const (
	statusKeyPrefix = "task:status:"
	writeTimeout    = 2 * time.Second
)

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// StatusCache mirrors task snapshots into Redis for outside readers. The
// registry stays authoritative; nothing in this service reads the mirror.
type StatusCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func NewStatusCache(store Store, ttl time.Duration, logger *zap.Logger) *StatusCache {
	return &StatusCache{store: store, ttl: ttl, logger: logger}
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*dto.TaskResponse, error) {
	data, err := sc.store.Get(ctx, statusKeyPrefix+taskID)
	if err != nil {
		return nil, err
	}

	var resp dto.TaskResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, fmt.Errorf("decode cached task %s: %w", taskID, err)
	}
	return &resp, nil
}

func (sc *StatusCache) Set(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(dto.FromTask(task))
	if err != nil {
		return err
	}
	return sc.store.Set(ctx, statusKeyPrefix+task.ID, data, sc.ttl)
}

// Listener writes every committed change. Failures are logged and dropped.
func (sc *StatusCache) Listener() repository.Listener {
	return func(task *models.Task) {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()

		if err := sc.Set(ctx, task); err != nil {
			sc.logger.Warn("Failed to mirror task status",
				zap.String("task_id", task.ID),
				zap.String("status", string(task.Status)),
				zap.Error(err),
			)
		}
	}
}
