package appServer

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/ds124wfegd/facesvg/internal/worker"
	"github.com/sirupsen/logrus"
)

// RunProcessor consumes the configured remote queue until SIGINT or SIGTERM.
func RunProcessor(cfg *config.Config) error {
	if cfg.Queue.Driver == "" || cfg.Queue.Driver == queue.DriverMemory {
		return fmt.Errorf("queue driver %q is in-process; run the app instead", cfg.Queue.Driver)
	}

	var resources closers
	defer resources.Close()

	repo, repoCloser, err := NewRepository(cfg)
	if err != nil {
		return err
	}
	resources = append(resources, repoCloser)

	q, queueCloser, err := NewQueue(cfg)
	if err != nil {
		return err
	}
	resources = append(resources, queueCloser)

	faceProcessor, err := NewProcessor(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logrus.WithFields(logrus.Fields{
		"store": cfg.Store.Driver,
		"queue": q.Driver,
	}).Info("Processor started")

	worker.NewWorker(repo, faceProcessor, cfg.Worker).Run(ctx, q.Consumer, cfg.Worker.Concurrency)

	logrus.Info("Processor stopped")
	return nil
}
