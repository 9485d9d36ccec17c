package service

import (
	"context"

	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
)

type JobService interface {
	// Submit records a job for the input and hands it to the dispatcher. With
	// deduplication on, a live job for the same content is returned instead.
	Submit(ctx context.Context, in entity.JobInput) (string, error)
	// Poll reports the job state; unknown ids read as pending.
	Poll(ctx context.Context, id string) (*entity.JobStatusView, error)
}

func NewJobService(repo database.JobRepository, dispatcher queue.Dispatcher, dedup bool) JobService {
	return newJobService(repo, dispatcher, dedup)
}
