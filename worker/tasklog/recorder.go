package tasklog

import (
	"context"
	"sync"
	"time"
)

// Step is one entry in a task's processing history.
type Step struct {
	Name      string         `json:"step"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Log is the full history of one task run.
type Log struct {
	TaskID     string    `json:"task_id"`
	TraceID    string    `json:"trace_id,omitempty"`
	URL        string    `json:"url"`
	Status     string    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Steps      []Step    `json:"steps"`
}

// Sink persists a finished log.
type Sink interface {
	Save(ctx context.Context, log *Log) error
}

type Recorder struct {
	mu  sync.Mutex
	log Log
	now func() time.Time
}

func NewRecorder(taskID, traceID, url string) *Recorder {
	r := &Recorder{now: time.Now}
	r.log = Log{
		TaskID:    taskID,
		TraceID:   traceID,
		URL:       url,
		StartedAt: r.now(),
	}
	return r
}

// Record appends a step. fields are key/value pairs.
func (r *Recorder) Record(name string, fields ...any) {
	step := Step{Name: name, Timestamp: r.now()}
	if len(fields) > 1 {
		step.Fields = make(map[string]any, len(fields)/2)
		for i := 0; i+1 < len(fields); i += 2 {
			if key, ok := fields[i].(string); ok {
				step.Fields[key] = fields[i+1]
			}
		}
	}

	r.mu.Lock()
	r.log.Steps = append(r.log.Steps, step)
	r.mu.Unlock()
}

// Finish stamps the final status and returns a copy of the log.
func (r *Recorder) Finish(status string) *Log {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Status = status
	r.log.FinishedAt = r.now()
	out := r.log
	out.Steps = append([]Step(nil), r.log.Steps...)
	return &out
}

func (r *Recorder) StepNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.log.Steps))
	for i, s := range r.log.Steps {
		names[i] = s.Name
	}
	return names
}
