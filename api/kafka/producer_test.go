package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap/zaptest"

	"videoDownloader/api/models"
)

func TestListener_PublishesSnapshot(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)
	defer sp.Close()

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event TaskEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.TaskID != "task-1" || event.Status != "failed" || event.ErrorKind != "unavailable" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	listener := Listener(&producer{producer: sp}, "video_tasks", zaptest.NewLogger(t))
	listener(&models.Task{
		ID:     "task-1",
		URL:    "https://youtu.be/gone",
		Status: models.StatusFailed,
		Error:  &models.TaskError{Kind: models.KindUnavailable, Message: "Video unavailable"},
	})
}

func TestListener_IgnoresPublishErrors(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, config)
	defer sp.Close()

	sp.ExpectSendMessageAndFail(errors.New("broker down"))

	listener := Listener(&producer{producer: sp}, "video_tasks", zaptest.NewLogger(t))
	listener(&models.Task{ID: "task-1", Status: models.StatusQueued})
}

// stalledProducer holds every send until its context ends.
type stalledProducer struct {
	hadDeadline bool
}

func (s *stalledProducer) SendTaskEvent(ctx context.Context, topic string, event *TaskEvent) error {
	_, s.hadDeadline = ctx.Deadline()
	<-ctx.Done()
	return ctx.Err()
}

func (s *stalledProducer) Close() error { return nil }

func TestListener_DoesNotWaitOnStalledBroker(t *testing.T) {
	stalled := &stalledProducer{}
	l := listener(stalled, "video_tasks", 50*time.Millisecond, zaptest.NewLogger(t))

	start := time.Now()
	l(&models.Task{ID: "task-1", Status: models.StatusDownloading})

	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Expected listener to return promptly, took %v", elapsed)
	}
	if !stalled.hadDeadline {
		t.Error("Expected publish to run under a deadline")
	}
}

func TestNewConfig_BoundsSend(t *testing.T) {
	config := newConfig()

	if config.Producer.Retry.Max > 1 {
		t.Errorf("Expected at most 1 retry, got %d", config.Producer.Retry.Max)
	}
	if config.Producer.Timeout != publishTimeout {
		t.Errorf("Expected producer timeout %v, got %v", publishTimeout, config.Producer.Timeout)
	}
	if config.Net.DialTimeout != publishTimeout {
		t.Errorf("Expected dial timeout %v, got %v", publishTimeout, config.Net.DialTimeout)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}
