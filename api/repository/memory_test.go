package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"videoDownloader/api/models"
)

func createTask(t *testing.T, repo *MemoryRepo) *models.Task {
	t.Helper()
	task := &models.Task{URL: "https://www.youtube.com/watch?v=test"}
	if err := repo.CreateTask(context.Background(), task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return task
}

func TestMemoryRepo_CreateThenGetIsQueued(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)

	if task.ID == "" {
		t.Fatal("Expected an identifier to be assigned")
	}

	got, err := repo.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.Status != models.StatusQueued {
		t.Errorf("Expected status queued, got %s", got.Status)
	}
	if got.ResultURL != "" || got.Error != nil {
		t.Errorf("Expected no result or error on a queued task, got %+v", got)
	}
	if got.CreatedAt.IsZero() || !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("Expected timestamps to be set, got %v / %v", got.CreatedAt, got.UpdatedAt)
	}
}

func TestMemoryRepo_IdentifiersAreUnique(t *testing.T) {
	repo := NewMemoryRepo()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		task := createTask(t, repo)
		if seen[task.ID] {
			t.Fatalf("Identifier %s reused", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestMemoryRepo_GetUnknown(t *testing.T) {
	repo := NewMemoryRepo()

	got, err := repo.GetTask(context.Background(), "does-not-exist")
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Expected ErrTaskNotFound, got %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil task, got %+v", got)
	}
}

func TestMemoryRepo_UpdateUnknown(t *testing.T) {
	repo := NewMemoryRepo()

	_, err := repo.UpdateTask(context.Background(), "missing", models.TaskUpdate{Status: models.StatusDownloading})
	if !errors.Is(err, ErrTaskNotFound) {
		t.Fatalf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestMemoryRepo_HappyPath(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)
	ctx := context.Background()

	for _, st := range []models.TaskStatus{models.StatusDownloading, models.StatusValidating, models.StatusConverting, models.StatusUploading} {
		if _, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: st, ProgressMessage: string(st)}); err != nil {
			t.Fatalf("Update to %s failed: %v", st, err)
		}
	}

	done, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{
		Status:          models.StatusCompleted,
		ProgressMessage: "Completed successfully!",
		ResultURL:       "https://res.cloudinary.com/demo/video/upload/x.mp4",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if done.ResultURL == "" || done.Status != models.StatusCompleted {
		t.Errorf("Expected completed task with result url, got %+v", done)
	}
}

func TestMemoryRepo_RejectsSkipsAndRegressions(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)
	ctx := context.Background()

	_, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusConverting})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition for skipped stage, got %v", err)
	}

	if _, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusDownloading}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	_, err = repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusQueued})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Expected ErrInvalidTransition for regression, got %v", err)
	}
}

func TestMemoryRepo_TerminalIsImmutable(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)
	ctx := context.Background()

	_, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{
		Status: models.StatusFailed,
		Error:  &models.TaskError{Kind: models.KindAgeRestricted, Message: "age restricted"},
	})
	if err != nil {
		t.Fatalf("Fail update failed: %v", err)
	}

	_, err = repo.UpdateTask(ctx, task.ID, models.TaskUpdate{
		Status: models.StatusFailed,
		Error:  &models.TaskError{Kind: models.KindUnknown, Message: "again"},
	})
	if !errors.Is(err, ErrTaskTerminal) {
		t.Fatalf("Expected ErrTaskTerminal, got %v", err)
	}

	got, _ := repo.GetTask(ctx, task.ID)
	if got.Error.Kind != models.KindAgeRestricted {
		t.Errorf("Expected first error to stick, got %s", got.Error.Kind)
	}
}

func TestMemoryRepo_ResultAndErrorTiedToTerminalStates(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		update models.TaskUpdate
	}{
		{"result url while downloading", models.TaskUpdate{Status: models.StatusDownloading, ResultURL: "https://x"}},
		{"error while downloading", models.TaskUpdate{Status: models.StatusDownloading, Error: &models.TaskError{Kind: models.KindUnknown}}},
		{"failed without error", models.TaskUpdate{Status: models.StatusFailed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.UpdateTask(ctx, task.ID, tt.update)
			if !errors.Is(err, ErrInvalidUpdate) {
				t.Errorf("Expected ErrInvalidUpdate, got %v", err)
			}
		})
	}
}

func TestMemoryRepo_SnapshotsAreIsolated(t *testing.T) {
	repo := NewMemoryRepo()
	task := createTask(t, repo)
	ctx := context.Background()

	got, _ := repo.GetTask(ctx, task.ID)
	got.Status = models.StatusCompleted
	got.ResultURL = "https://tampered"

	again, _ := repo.GetTask(ctx, task.ID)
	if again.Status != models.StatusQueued || again.ResultURL != "" {
		t.Errorf("Expected registry state to be unaffected by caller mutation, got %+v", again)
	}
}

func TestMemoryRepo_ListenersSeeEveryCommit(t *testing.T) {
	repo := NewMemoryRepo()

	var mu sync.Mutex
	var seen []models.TaskStatus
	repo.Subscribe(func(task *models.Task) {
		mu.Lock()
		seen = append(seen, task.Status)
		mu.Unlock()
	})

	task := createTask(t, repo)
	if _, err := repo.UpdateTask(context.Background(), task.ID, models.TaskUpdate{Status: models.StatusDownloading}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// Rejected updates are not published.
	_, _ = repo.UpdateTask(context.Background(), task.ID, models.TaskUpdate{Status: models.StatusCompleted})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != models.StatusQueued || seen[1] != models.StatusDownloading {
		t.Errorf("Expected [queued downloading], got %v", seen)
	}
}

func TestMemoryRepo_PanickingListenerKeepsCommit(t *testing.T) {
	repo := NewMemoryRepo().WithLogger(zaptest.NewLogger(t))

	repo.Subscribe(func(task *models.Task) {
		if task.Status == models.StatusCompleted {
			panic("listener bug")
		}
	})
	var seen []models.TaskStatus
	repo.Subscribe(func(task *models.Task) {
		seen = append(seen, task.Status)
	})

	ctx := context.Background()
	task := createTask(t, repo)
	for _, st := range []models.TaskStatus{models.StatusDownloading, models.StatusValidating, models.StatusConverting, models.StatusUploading} {
		if _, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: st}); err != nil {
			t.Fatalf("Update to %s failed: %v", st, err)
		}
	}

	var (
		got *models.Task
		err error
	)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				t.Fatalf("Expected UpdateTask not to panic, got %v", rec)
			}
		}()
		got, err = repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusCompleted, ResultURL: "https://cdn/x.mp4"})
	}()
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got.Status != models.StatusCompleted {
		t.Errorf("Expected completed snapshot, got %s", got.Status)
	}

	stored, _ := repo.GetTask(ctx, task.ID)
	if stored.Status != models.StatusCompleted {
		t.Errorf("Expected stored status completed, got %s", stored.Status)
	}
	if len(seen) == 0 || seen[len(seen)-1] != models.StatusCompleted {
		t.Errorf("Expected later listeners to see completed, got %v", seen)
	}
}

func TestMemoryRepo_ConcurrentTasksDoNotInterfere(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	const n = 50

	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := &models.Task{URL: fmt.Sprintf("https://example.com/%d", i)}
			if err := repo.CreateTask(ctx, task); err != nil {
				t.Errorf("CreateTask failed: %v", err)
				return
			}
			ids[i] = task.ID

			for _, st := range []models.TaskStatus{models.StatusDownloading, models.StatusValidating, models.StatusConverting, models.StatusUploading} {
				if _, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: st}); err != nil {
					t.Errorf("Update failed: %v", err)
					return
				}
			}
			if i%2 == 0 {
				_, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusCompleted, ResultURL: fmt.Sprintf("https://cdn/%d.mp4", i)})
				if err != nil {
					t.Errorf("Complete failed: %v", err)
				}
				return
			}
			_, err := repo.UpdateTask(ctx, task.ID, models.TaskUpdate{Status: models.StatusFailed, Error: &models.TaskError{Kind: models.KindUploadFailed, Message: fmt.Sprint(i)}})
			if err != nil {
				t.Errorf("Fail failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	for i, id := range ids {
		got, err := repo.GetTask(ctx, id)
		if err != nil {
			t.Fatalf("GetTask(%d) failed: %v", i, err)
		}
		if i%2 == 0 {
			if got.ResultURL != fmt.Sprintf("https://cdn/%d.mp4", i) || got.Error != nil {
				t.Errorf("Task %d has wrong result: %+v", i, got)
			}
			continue
		}
		if got.ResultURL != "" || got.Error == nil || got.Error.Message != fmt.Sprint(i) {
			t.Errorf("Task %d has wrong error: %+v", i, got)
		}
	}
}
