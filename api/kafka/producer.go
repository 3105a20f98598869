package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"videoDownloader/api/models"
	"videoDownloader/api/repository"
)

// publishTimeout caps how long a task transition waits on the broker.
const publishTimeout = 2 * time.Second

type Producer interface {
	SendTaskEvent(ctx context.Context, topic string, event *TaskEvent) error
	Close() error
}

// TaskEvent is published on every committed task change.
type TaskEvent struct {
	TaskID    string    `json:"task_id"`
	TraceID   string    `json:"trace_id"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Message   string    `json:"progress_message,omitempty"`
	ResultURL string    `json:"result_url,omitempty"`
	ErrorKind string    `json:"error_kind,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewTaskEvent(task *models.Task) *TaskEvent {
	event := &TaskEvent{
		TaskID:    task.ID,
		TraceID:   task.TraceID,
		URL:       task.URL,
		Status:    string(task.Status),
		Message:   task.ProgressMessage,
		ResultURL: task.ResultURL,
		Timestamp: task.UpdatedAt,
	}
	if task.Error != nil {
		event.ErrorKind = string(task.Error.Kind)
		event.Error = task.Error.Message
	}
	return event
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	p, err := sarama.NewSyncProducer(brokers, newConfig())
	if err != nil {
		return nil, err
	}

	return &producer{producer: p}, nil
}

// newConfig keeps a single send short when the broker is unreachable.
func newConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 1
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	config.Producer.Timeout = publishTimeout
	config.Producer.Return.Successes = true
	config.Metadata.Retry.Max = 1
	config.Metadata.Retry.Backoff = 100 * time.Millisecond
	config.Net.DialTimeout = publishTimeout
	config.Net.WriteTimeout = publishTimeout
	return config
}

func (p *producer) SendTaskEvent(ctx context.Context, topic string, event *TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := p.producer.SendMessage(msg)
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *producer) Close() error {
	return p.producer.Close()
}

// Listener publishes each task snapshot to topic. Publish errors are logged
// and never reach the pipeline.
func Listener(p Producer, topic string, logger *zap.Logger) repository.Listener {
	return listener(p, topic, publishTimeout, logger)
}

func listener(p Producer, topic string, timeout time.Duration, logger *zap.Logger) repository.Listener {
	return func(task *models.Task) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := p.SendTaskEvent(ctx, topic, NewTaskEvent(task)); err != nil {
			logger.Warn("Failed to publish task event",
				zap.String("task_id", task.ID),
				zap.String("status", string(task.Status)),
				zap.Error(err),
			)
		}
	}
}
