// Package queue defines how processing tasks travel from the submit path to
// the workers and provides the in-process implementation.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/sirupsen/logrus"
)

const (
	DriverMemory   = "memory"
	DriverKafka    = "kafka"
	DriverRabbitMQ = "rabbitmq"
)

var ErrClosed = errors.New("queue closed")

// Dispatcher hands a task to the processing substrate.
type Dispatcher interface {
	Enqueue(ctx context.Context, task entity.ProcessingTask) error
}

// Handler processes one delivery. A non-nil error means the delivery could
// not be handled and may be redelivered.
type Handler func(ctx context.Context, task entity.ProcessingTask) error

// Consumer delivers tasks to handle until ctx is cancelled. Delivery is at
// least once.
type Consumer interface {
	Consume(ctx context.Context, handle Handler) error
}

// GiveUp is told about a task the consumer stopped redelivering, so its job
// does not stay pending forever.
type GiveUp func(ctx context.Context, task entity.ProcessingTask, cause error)

// Abandoning is implemented by consumers that can drop a task for good.
type Abandoning interface {
	OnGiveUp(fn GiveUp)
}

func Encode(task entity.ProcessingTask) ([]byte, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (entity.ProcessingTask, error) {
	var task entity.ProcessingTask
	if err := json.Unmarshal(data, &task); err != nil {
		return task, fmt.Errorf("failed to parse task: %w", err)
	}
	if task.JobID == "" {
		return task, fmt.Errorf("failed to parse task: missing job_id")
	}
	return task, nil
}

// MemoryQueue is a bounded in-process queue. Enqueue blocks while the queue
// is full.
type MemoryQueue struct {
	tasks     chan entity.ProcessingTask
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	giveUp GiveUp
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemoryQueue{
		tasks: make(chan entity.ProcessingTask, capacity),
		done:  make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task entity.ProcessingTask) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.tasks <- task:
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume may be called from several goroutines; each task goes to one of
// them. A failed delivery is put back on the queue.
func (q *MemoryQueue) Consume(ctx context.Context, handle Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrClosed
		case task := <-q.tasks:
			if err := handle(ctx, task); err != nil {
				logrus.WithError(err).WithField("job_id", task.JobID).Warn("task handling failed, requeueing")
				q.requeue(ctx, task, err)
			}
		}
	}
}

// OnGiveUp registers fn for tasks dropped because the queue was full on
// requeue.
func (q *MemoryQueue) OnGiveUp(fn GiveUp) {
	q.mu.Lock()
	q.giveUp = fn
	q.mu.Unlock()
}

func (q *MemoryQueue) requeue(ctx context.Context, task entity.ProcessingTask, cause error) {
	select {
	case q.tasks <- task:
	default:
		logrus.WithField("job_id", task.JobID).Error("queue full, dropping failed task")
		q.mu.RLock()
		giveUp := q.giveUp
		q.mu.RUnlock()
		if giveUp != nil {
			giveUp(ctx, task, cause)
		}
	}
}

func (q *MemoryQueue) Len() int {
	return len(q.tasks)
}

func (q *MemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
