package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 8

var (
	// KEYS[1] hash key, ARGV[1] expected owner, ARGV[2] new owner, ARGV[3] ttl ms
	swapScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	if tonumber(ARGV[3]) > 0 then
		redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	else
		redis.call("SET", KEYS[1], ARGV[2])
	end
	return 1
end
return 0
`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)
)

// JobRepository stores each job as JSON under "<prefix>:job:<id>" and each
// hash claim under "<prefix>:jobhash:<hash>". A zero ttl keeps keys forever.
type JobRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewJobRepository(client *redis.Client, prefix string, ttl time.Duration) database.JobRepository {
	return &JobRepository{client: client, prefix: prefix, ttl: ttl}
}

func (r *JobRepository) jobKey(id string) string {
	return fmt.Sprintf("%s:job:%s", r.prefix, id)
}

func (r *JobRepository) hashKey(hash string) string {
	return fmt.Sprintf("%s:jobhash:%s", r.prefix, hash)
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.jobKey(job.ID), data, r.ttl).Err()
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	data, err := r.client.Get(ctx, r.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var job entity.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.jobKey(id)).Err()
}

func (r *JobRepository) ClaimHash(ctx context.Context, hash, jobID string) (string, error) {
	key := r.hashKey(hash)
	for i := 0; i < maxTxRetries; i++ {
		ok, err := r.client.SetNX(ctx, key, jobID, r.ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return jobID, nil
		}

		owner, err := r.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			// released between SETNX and GET
			continue
		}
		if err != nil {
			return "", err
		}
		return owner, nil
	}
	return "", fmt.Errorf("claim hash %s: too much contention", hash)
}

func (r *JobRepository) SwapHash(ctx context.Context, hash, oldID, newID string) (bool, error) {
	n, err := swapScript.Run(ctx, r.client, []string{r.hashKey(hash)}, oldID, newID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *JobRepository) ReleaseHash(ctx context.Context, hash, jobID string) error {
	return releaseScript.Run(ctx, r.client, []string{r.hashKey(hash)}, jobID).Err()
}

func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	return r.update(ctx, id, func(job *entity.Job) error {
		return job.Start()
	})
}

func (r *JobRepository) Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error {
	return r.update(ctx, id, func(job *entity.Job) error {
		return job.Succeed(result, at)
	})
}

func (r *JobRepository) Fail(ctx context.Context, id, message string, at time.Time) error {
	return r.update(ctx, id, func(job *entity.Job) error {
		return job.Fail(message, at)
	})
}

// update applies a transition under WATCH so concurrent writers of the same
// job retry instead of overwriting each other.
func (r *JobRepository) update(ctx context.Context, id string, apply func(*entity.Job) error) error {
	key := r.jobKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return entity.ErrJobNotFound
		}
		if err != nil {
			return err
		}

		var job entity.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("decode job %s: %w", id, err)
		}
		if err := apply(&job); err != nil {
			return err
		}
		next, err := json.Marshal(&job)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update job %s: too much contention", id)
}
