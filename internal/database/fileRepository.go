package database

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/storage"
)

// fileJobRepository keeps one JSON document per job and one small file per
// content hash holding the owning job id. Hash claims rely on exclusive file
// creation; swaps and state transitions are serialized inside the process,
// so a storage directory must not be shared by several processes.
type fileJobRepository struct {
	mu      sync.Mutex
	storage storage.FileStorage
}

func NewFileRepository(storage storage.FileStorage) JobRepository {
	return &fileJobRepository{storage: storage}
}

func (r *fileJobRepository) Create(ctx context.Context, job *entity.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(job)
}

func (r *fileJobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.load(id)
}

func (r *fileJobRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storage.Delete(r.getJobPath(id))
}

func (r *fileJobRepository) ClaimHash(ctx context.Context, hash, jobID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.storage.Create(r.getHashPath(hash), strings.NewReader(jobID))
	if err == nil {
		return jobID, nil
	}
	if !errors.Is(err, storage.ErrExists) {
		return "", err
	}
	return r.owner(hash)
}

func (r *fileJobRepository) SwapHash(ctx context.Context, hash, oldID, newID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, err := r.owner(hash)
	if err != nil {
		return false, err
	}
	if owner != oldID {
		return false, nil
	}
	if err := r.storage.Save(r.getHashPath(hash), strings.NewReader(newID)); err != nil {
		return false, err
	}
	return true, nil
}

func (r *fileJobRepository) ReleaseHash(ctx context.Context, hash, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, err := r.owner(hash)
	if err != nil {
		return err
	}
	if owner != jobID {
		return nil
	}
	return r.storage.Delete(r.getHashPath(hash))
}

func (r *fileJobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Start()
	})
}

func (r *fileJobRepository) Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Succeed(result, at)
	})
}

func (r *fileJobRepository) Fail(ctx context.Context, id, message string, at time.Time) error {
	return r.update(id, func(job *entity.Job) error {
		return job.Fail(message, at)
	})
}

func (r *fileJobRepository) update(id string, apply func(*entity.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, err := r.load(id)
	if err != nil {
		return err
	}
	if job == nil {
		return entity.ErrJobNotFound
	}
	if err := apply(job); err != nil {
		return err
	}
	return r.save(job)
}

func (r *fileJobRepository) save(job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.storage.Save(r.getJobPath(job.ID), bytes.NewReader(data))
}

func (r *fileJobRepository) load(id string) (*entity.Job, error) {
	reader, err := r.storage.Get(r.getJobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer reader.Close()

	var job entity.Job
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&job); err != nil {
		return nil, err
	}

	return &job, nil
}

// owner returns "" when the hash is unclaimed.
func (r *fileJobRepository) owner(hash string) (string, error) {
	reader, err := r.storage.Get(r.getHashPath(hash))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (r *fileJobRepository) getJobPath(id string) string {
	return filepath.Join("jobs", filepath.Base(id)+".json")
}

func (r *fileJobRepository) getHashPath(hash string) string {
	return filepath.Join("hashes", filepath.Base(hash))
}
