package models

import (
	"time"
)

type TaskStatus string

const (
	StatusQueued      TaskStatus = "queued"
	StatusDownloading TaskStatus = "downloading"
	StatusValidating  TaskStatus = "validating"
	StatusConverting  TaskStatus = "converting"
	StatusUploading   TaskStatus = "uploading"
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
)

// pipelineOrder is the only forward path a task may take.
var pipelineOrder = []TaskStatus{
	StatusQueued,
	StatusDownloading,
	StatusValidating,
	StatusConverting,
	StatusUploading,
	StatusCompleted,
}

func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transitions are allowed.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsValid reports whether s is one of the known statuses.
func (s TaskStatus) IsValid() bool {
	return s == StatusFailed || s.position() >= 0
}

func (s TaskStatus) position() int {
	for i, st := range pipelineOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the status that follows s on the happy path.
func (s TaskStatus) Next() (TaskStatus, bool) {
	pos := s.position()
	if pos < 0 || pos == len(pipelineOrder)-1 {
		return "", false
	}
	return pipelineOrder[pos+1], true
}

// CanTransition reports whether a task in status s may move to next.
// Staying in the same non-terminal status is allowed so the progress
// message can be refreshed without advancing.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.IsTerminal() || !next.IsValid() {
		return false
	}
	if next == StatusFailed || next == s {
		return true
	}
	following, ok := s.Next()
	return ok && following == next
}

type Task struct {
	ID              string
	TraceID         string
	URL             string
	Status          TaskStatus
	ProgressMessage string
	ResultURL       string
	ThumbnailURL    string
	Error           *TaskError
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Clone returns a deep copy safe to hand out to readers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	return &c
}

// TaskUpdate carries one atomic change to a task. Empty optional fields are
// left untouched, except that ResultURL and Error are only accepted together
// with the terminal status they belong to.
type TaskUpdate struct {
	Status          TaskStatus
	ProgressMessage string
	ResultURL       string
	ThumbnailURL    string
	Error           *TaskError
}
