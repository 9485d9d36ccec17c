package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"

	_ "github.com/lib/pq"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) database.JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `INSERT INTO processing_jobs (job_id, content_hash, status, created_at) VALUES ($1, $2, $3, $4)`
	_, err := r.db.ExecContext(ctx, query, job.ID, job.ContentHash, string(job.State), job.CreatedAt)
	return err
}

func (r *JobRepository) FindByID(ctx context.Context, id string) (*entity.Job, error) {
	var (
		job         entity.Job
		state       string
		svg         sql.NullString
		contours    []byte
		errMessage  sql.NullString
		completedAt sql.NullTime
	)
	query := `SELECT job_id, content_hash, status, result_svg, mask_contours, error_message, created_at, completed_at
		FROM processing_jobs WHERE job_id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.ContentHash, &state, &svg, &contours, &errMessage, &job.CreatedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	job.State = entity.JobState(state)
	job.Error = errMessage.String
	if completedAt.Valid {
		at := completedAt.Time
		job.CompletedAt = &at
	}
	if job.State == entity.StateSucceeded {
		result := &entity.JobResult{SVG: svg.String, MaskContours: entity.ContourSet{}}
		if len(contours) > 0 {
			if err := json.Unmarshal(contours, &result.MaskContours); err != nil {
				return nil, fmt.Errorf("decode contours of job %s: %w", id, err)
			}
		}
		job.Result = result
	}
	return &job, nil
}

func (r *JobRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE job_id = $1`, id)
	return err
}

func (r *JobRepository) ClaimHash(ctx context.Context, hash, jobID string) (string, error) {
	query := `INSERT INTO job_hashes (content_hash, job_id) VALUES ($1, $2) ON CONFLICT (content_hash) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, hash, jobID); err != nil {
		return "", err
	}

	var owner string
	err := r.db.QueryRowContext(ctx, `SELECT job_id FROM job_hashes WHERE content_hash = $1`, hash).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		// released right after the insert; the caller retries
		return "", nil
	}
	return owner, err
}

func (r *JobRepository) SwapHash(ctx context.Context, hash, oldID, newID string) (bool, error) {
	query := `UPDATE job_hashes SET job_id = $3 WHERE content_hash = $1 AND job_id = $2`
	res, err := r.db.ExecContext(ctx, query, hash, oldID, newID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *JobRepository) ReleaseHash(ctx context.Context, hash, jobID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM job_hashes WHERE content_hash = $1 AND job_id = $2`, hash, jobID)
	return err
}

func (r *JobRepository) MarkRunning(ctx context.Context, id string) error {
	query := `UPDATE processing_jobs SET status = 'running' WHERE job_id = $1 AND status IN ('pending', 'running')`
	res, err := r.db.ExecContext(ctx, query, id)
	return r.checkTransition(ctx, id, res, err)
}

func (r *JobRepository) Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error {
	contours, err := json.Marshal(result.MaskContours)
	if err != nil {
		return err
	}
	query := `UPDATE processing_jobs
		SET status = 'succeeded', result_svg = $2, mask_contours = $3, error_message = NULL, completed_at = $4
		WHERE job_id = $1 AND status = 'running'`
	res, err := r.db.ExecContext(ctx, query, id, result.SVG, contours, at.UTC())
	return r.checkTransition(ctx, id, res, err)
}

func (r *JobRepository) Fail(ctx context.Context, id, message string, at time.Time) error {
	if message == "" {
		message = entity.ErrInternalComputation.Error()
	}
	query := `UPDATE processing_jobs
		SET status = 'failed', error_message = $2, result_svg = NULL, mask_contours = NULL, completed_at = $3
		WHERE job_id = $1 AND status = 'running'`
	res, err := r.db.ExecContext(ctx, query, id, message, at.UTC())
	return r.checkTransition(ctx, id, res, err)
}

// checkTransition tells a missing job apart from one whose state did not
// allow the update.
func (r *JobRepository) checkTransition(ctx context.Context, id string, res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var exists bool
	err = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM processing_jobs WHERE job_id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return entity.ErrJobNotFound
	}
	return entity.ErrJobFinished
}
