package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

const (
	maxAttempts  = 5
	retryBackoff = 200 * time.Millisecond
)

// Consumer reads tasks as a member of a consumer group. Every Consume call
// joins the group with its own reader.
type Consumer struct {
	cfg     config.KafkaConfig
	backoff time.Duration

	mu     sync.RWMutex
	giveUp queue.GiveUp
}

func NewConsumer(cfg config.KafkaConfig) *Consumer {
	return &Consumer{cfg: cfg, backoff: retryBackoff}
}

// OnGiveUp registers fn for tasks whose message is committed after every
// attempt failed.
func (c *Consumer) OnGiveUp(fn queue.GiveUp) {
	c.mu.Lock()
	c.giveUp = fn
	c.mu.Unlock()
}

func readerConfig(cfg config.KafkaConfig) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.FirstOffset,
	}
}

// Consume commits a message once handle succeeds. A failing handler is
// retried with backoff up to maxAttempts times before the message is
// committed anyway, so one poisoned task cannot stall the partition.
func (c *Consumer) Consume(ctx context.Context, handle queue.Handler) error {
	reader := kafka.NewReader(readerConfig(c.cfg))
	defer reader.Close()

	logrus.WithFields(logrus.Fields{
		"brokers": c.cfg.Brokers,
		"topic":   c.cfg.Topic,
		"group":   c.cfg.GroupID,
	}).Info("Kafka consumer started")

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return ctx.Err()
			}
			logrus.WithError(err).Error("Error reading message from Kafka")
			if err := c.wait(ctx, c.backoff); err != nil {
				return err
			}
			continue
		}

		if err := c.deliver(ctx, msg, handle); err != nil {
			return err
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.WithError(err).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("Failed to commit message")
		}
	}
}

// deliver hands msg to handle. It returns an error only when ctx ended, in
// which case the message must not be committed.
func (c *Consumer) deliver(ctx context.Context, msg kafka.Message, handle queue.Handler) error {
	log := logrus.WithFields(logrus.Fields{
		"partition": msg.Partition,
		"offset":    msg.Offset,
	})

	task, err := queue.Decode(msg.Value)
	if err != nil {
		log.WithError(err).Error("Dropping malformed task")
		return nil
	}

	err = c.handleWithRetry(ctx, handle, task)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.WithError(err).WithField("job_id", task.JobID).Error("Task handling failed, giving up")
	c.mu.RLock()
	giveUp := c.giveUp
	c.mu.RUnlock()
	if giveUp != nil {
		giveUp(ctx, task, err)
	}
	return nil
}

func (c *Consumer) handleWithRetry(ctx context.Context, handle queue.Handler, task entity.ProcessingTask) error {
	backoff := c.backoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = handle(ctx, task); err == nil {
			return nil
		}
		logrus.WithError(err).WithFields(logrus.Fields{
			"job_id":  task.JobID,
			"attempt": attempt,
		}).Warn("Task handling failed")

		if attempt == maxAttempts {
			break
		}
		if werr := c.wait(ctx, backoff); werr != nil {
			return werr
		}
		backoff *= 2
	}
	return err
}

func (c *Consumer) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
