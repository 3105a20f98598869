package repository

import (
	"context"
	"errors"

	"videoDownloader/api/models"
)

var (
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskAlreadyExists = errors.New("task already exists")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrTaskTerminal      = errors.New("task is in a terminal state")
	ErrInvalidUpdate     = errors.New("invalid task update")
)

// Listener is called with a snapshot of every committed change.
type Listener func(task *models.Task)

type Repository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, update models.TaskUpdate) (*models.Task, error)
	Subscribe(listener Listener)
}
