package database

import (
	"context"
	"sync"
	"time"

	"github.com/ds124wfegd/facesvg/internal/entity"
)

type memoryRepository struct {
	mu     sync.Mutex
	jobs   map[string]*entity.Job
	hashes map[string]string
}

func NewMemoryRepository() JobRepository {
	return &memoryRepository{
		jobs:   make(map[string]*entity.Job),
		hashes: make(map[string]string),
	}
}

func (r *memoryRepository) Create(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *memoryRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.jobs[id].Clone(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.jobs, id)
	return nil
}

func (r *memoryRepository) ClaimHash(ctx context.Context, hash, jobID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.hashes[hash]; ok {
		return owner, nil
	}
	r.hashes[hash] = jobID
	return jobID, nil
}

func (r *memoryRepository) SwapHash(ctx context.Context, hash, oldID, newID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hashes[hash] != oldID {
		return false, nil
	}
	r.hashes[hash] = newID
	return true, nil
}

func (r *memoryRepository) ReleaseHash(ctx context.Context, hash, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.hashes[hash] == jobID {
		delete(r.hashes, hash)
	}
	return nil
}

func (r *memoryRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Start()
	})
}

func (r *memoryRepository) Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Succeed(result, at)
	})
}

func (r *memoryRepository) Fail(ctx context.Context, id, message string, at time.Time) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Fail(message, at)
	})
}

func (r *memoryRepository) update(id string, apply func(*entity.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return entity.ErrJobNotFound
	}
	next := job.Clone()
	if err := apply(next); err != nil {
		return err
	}
	r.jobs[id] = next
	return nil
}
