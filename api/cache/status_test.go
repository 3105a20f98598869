package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"videoDownloader/api/models"
)

type memoryStore struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", errors.New("redis: nil")
	}
	return v, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.data[key] = string(value.([]byte))
	m.ttl[key] = expiration
	return nil
}

func TestStatusCache_ListenerMirrorsSnapshots(t *testing.T) {
	store := newMemoryStore()
	sc := NewStatusCache(store, time.Hour, zaptest.NewLogger(t))
	listener := sc.Listener()

	task := &models.Task{ID: "task-1", URL: "https://youtu.be/x", Status: models.StatusQueued}
	listener(task)

	task.Status = models.StatusFailed
	task.Error = &models.TaskError{Kind: models.KindGeoBlocked, Message: "blocked"}
	listener(task)

	if store.ttl["task:status:task-1"] != time.Hour {
		t.Errorf("Expected 1h TTL, got %v", store.ttl["task:status:task-1"])
	}

	got, err := sc.Get(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != "failed" {
		t.Errorf("Expected status failed, got %s", got.Status)
	}
	if got.Error == nil || got.Error.Kind != "geo_blocked" {
		t.Errorf("Expected geo_blocked error, got %+v", got.Error)
	}
}

func TestStatusCache_ListenerSwallowsErrors(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	sc := NewStatusCache(store, time.Hour, zaptest.NewLogger(t))

	sc.Listener()(&models.Task{ID: "task-1", Status: models.StatusQueued})

	if _, err := sc.Get(context.Background(), "task-1"); err == nil {
		t.Error("Expected miss after failed write")
	}
}
