package database

import (
	"context"
	"time"

	"github.com/ds124wfegd/facesvg/internal/entity"
)

// JobRepository persists jobs and the content hash to job mapping.
//
// Every driver keeps two guarantees. ClaimHash, SwapHash and ReleaseHash
// are atomic with respect to each other, so two submissions of the same
// content can never both own the hash. State transitions are conditional:
// MarkRunning only moves pending or running jobs, Complete and Fail only
// move running jobs, and both report ErrJobFinished otherwise.
type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	// FindByID returns nil, nil when the job does not exist.
	FindByID(ctx context.Context, id string) (*entity.Job, error)
	Delete(ctx context.Context, id string) error

	// ClaimHash maps hash to jobID unless it is already mapped and returns
	// the owner after the call.
	ClaimHash(ctx context.Context, hash, jobID string) (string, error)
	// SwapHash remaps hash from oldID to newID if oldID still owns it.
	SwapHash(ctx context.Context, hash, oldID, newID string) (bool, error)
	// ReleaseHash drops the mapping if jobID owns it.
	ReleaseHash(ctx context.Context, hash, jobID string) error

	MarkRunning(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error
	Fail(ctx context.Context, id, message string, at time.Time) error
}
