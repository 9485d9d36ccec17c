// Package worker executes dispatched processing tasks and records their
// outcome on the job.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/processor"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/sirupsen/logrus"
)

type Worker struct {
	repo      database.JobRepository
	processor processor.FaceProcessor
	cfg       config.WorkerConfig
	now       func() time.Time
}

func NewWorker(repo database.JobRepository, p processor.FaceProcessor, cfg config.WorkerConfig) *Worker {
	return &Worker{
		repo:      repo,
		processor: p,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Handle runs one task to completion. Pipeline failures end up on the job as
// its failure message; an error is returned only when the job record itself
// could not be updated, so the delivery can be retried.
func (w *Worker) Handle(ctx context.Context, task entity.ProcessingTask) error {
	log := logrus.WithField("job_id", task.JobID)

	if err := w.repo.MarkRunning(ctx, task.JobID); err != nil {
		switch {
		case errors.Is(err, entity.ErrJobFinished):
			log.Info("job already finished, skipping duplicate delivery")
			return nil
		case errors.Is(err, entity.ErrJobNotFound):
			log.Warn("job record not found, dropping task")
			return nil
		}
		return fmt.Errorf("mark job %s running: %w", task.JobID, err)
	}

	if err := w.simulateWork(ctx); err != nil {
		return err
	}

	start := w.now()
	result, err := w.process(task.Input())
	if err != nil {
		log.WithError(err).Warn("job failed")
		return w.finish(w.repo.Fail(ctx, task.JobID, err.Error(), w.now()), task.JobID)
	}

	log.WithFields(logrus.Fields{
		"duration": w.now().Sub(start).String(),
		"regions":  len(result.MaskContours.Regions()),
	}).Info("job succeeded")
	return w.finish(w.repo.Complete(ctx, task.JobID, result, w.now()), task.JobID)
}

// Abandon fails the job of a task the queue stopped redelivering. Jobs that
// already finished are left alone.
func (w *Worker) Abandon(ctx context.Context, task entity.ProcessingTask, cause error) {
	log := logrus.WithField("job_id", task.JobID)

	err := w.repo.MarkRunning(ctx, task.JobID)
	if err == nil {
		err = w.repo.Fail(ctx, task.JobID, fmt.Sprintf("job abandoned after repeated failures: %v", cause), w.now())
	}
	switch {
	case err == nil:
		log.WithError(cause).Warn("job abandoned")
	case errors.Is(err, entity.ErrJobFinished), errors.Is(err, entity.ErrJobNotFound):
	default:
		log.WithError(err).Error("failed to record abandoned job")
	}
}

// finish treats a terminal job as settled: another delivery got there first.
func (w *Worker) finish(err error, id string) error {
	if err == nil || errors.Is(err, entity.ErrJobFinished) {
		return nil
	}
	return fmt.Errorf("record outcome of job %s: %w", id, err)
}

// process runs the pipeline, bounded by the job timeout when one is set. On
// expiry the pipeline keeps running and its result is dropped.
func (w *Worker) process(in entity.JobInput) (*entity.JobResult, error) {
	if w.cfg.JobTimeout <= 0 {
		return w.processor.Process(in)
	}

	type outcome struct {
		result *entity.JobResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := w.processor.Process(in)
		done <- outcome{result: result, err: err}
	}()

	timer := time.NewTimer(w.cfg.JobTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.result, out.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", entity.ErrJobTimeout, w.cfg.JobTimeout)
	}
}

func (w *Worker) simulateWork(ctx context.Context) error {
	if w.cfg.LoadTestMode || w.cfg.SimulationDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(w.cfg.SimulationDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts concurrency consume loops on consumer and blocks until all of
// them have stopped.
func (w *Worker) Run(ctx context.Context, consumer queue.Consumer, concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}
	if a, ok := consumer.(queue.Abandoning); ok {
		a.OnGiveUp(w.Abandon)
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := consumer.Consume(ctx, w.Handle)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, queue.ErrClosed) {
				logrus.WithError(err).WithField("worker", n).Error("consumer stopped")
			}
		}(i)
	}

	logrus.WithField("concurrency", concurrency).Info("Workers started")
	wg.Wait()
	logrus.Info("Workers stopped")
}
