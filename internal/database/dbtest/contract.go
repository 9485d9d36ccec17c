// Package dbtest holds the behaviour every JobRepository driver must share.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepositoryTests runs the shared suite against fresh repositories built
// by newRepo.
func RunRepositoryTests(t *testing.T, newRepo func(t *testing.T) database.JobRepository) {
	t.Run("missing job", func(t *testing.T) {
		job, err := newRepo(t).FindByID(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("create and find", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		created := entity.NewJob("job-1", "hash-1", time.Now())

		require.NoError(t, repo.Create(ctx, created))
		job, err := repo.FindByID(ctx, "job-1")

		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, "hash-1", job.ContentHash)
		assert.Equal(t, entity.StatePending, job.State)
		assert.Nil(t, job.Result)
		assert.Empty(t, job.Error)
		assert.True(t, created.CreatedAt.Equal(job.CreatedAt))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "h", time.Now())))

		require.NoError(t, repo.Delete(ctx, "job-1"))
		job, err := repo.FindByID(ctx, "job-1")

		require.NoError(t, err)
		assert.Nil(t, job)
	})

	t.Run("hash claim swap release", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		owner, err := repo.ClaimHash(ctx, "h", "a")
		require.NoError(t, err)
		assert.Equal(t, "a", owner)

		owner, err = repo.ClaimHash(ctx, "h", "b")
		require.NoError(t, err)
		assert.Equal(t, "a", owner)

		swapped, err := repo.SwapHash(ctx, "h", "b", "c")
		require.NoError(t, err)
		assert.False(t, swapped)

		swapped, err = repo.SwapHash(ctx, "h", "a", "b")
		require.NoError(t, err)
		assert.True(t, swapped)

		require.NoError(t, repo.ReleaseHash(ctx, "h", "a"))
		owner, err = repo.ClaimHash(ctx, "h", "c")
		require.NoError(t, err)
		assert.Equal(t, "b", owner)

		require.NoError(t, repo.ReleaseHash(ctx, "h", "b"))
		owner, err = repo.ClaimHash(ctx, "h", "c")
		require.NoError(t, err)
		assert.Equal(t, "c", owner)
	})

	t.Run("concurrent claims agree on one owner", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		const n = 16
		owners := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				owner, err := repo.ClaimHash(ctx, "shared", fmt.Sprintf("job-%d", i))
				assert.NoError(t, err)
				owners[i] = owner
			}(i)
		}
		wg.Wait()

		for _, o := range owners {
			assert.Equal(t, owners[0], o)
		}
		assert.Contains(t, owners, owners[0])
	})

	t.Run("success path", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "h", time.Now())))

		require.NoError(t, repo.MarkRunning(ctx, "job-1"))
		// redelivery of a running job
		require.NoError(t, repo.MarkRunning(ctx, "job-1"))

		job, err := repo.FindByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StateRunning, job.State)

		result := &entity.JobResult{
			SVG: "PHN2Zz48L3N2Zz4=",
			MaskContours: entity.ContourSet{
				{Region: "1", Contours: []entity.Contour{{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}}},
			},
		}
		require.NoError(t, repo.Complete(ctx, "job-1", result, time.Now()))

		job, err = repo.FindByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StateSucceeded, job.State)
		require.NotNil(t, job.Result)
		assert.Equal(t, result.SVG, job.Result.SVG)
		assert.Equal(t, result.MaskContours, job.Result.MaskContours)
		assert.Empty(t, job.Error)
		assert.NotNil(t, job.CompletedAt)
	})

	t.Run("failure path", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "h", time.Now())))
		require.NoError(t, repo.MarkRunning(ctx, "job-1"))

		require.NoError(t, repo.Fail(ctx, "job-1", "no face detected in the provided image", time.Now()))

		job, err := repo.FindByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StateFailed, job.State)
		assert.Equal(t, "no face detected in the provided image", job.Error)
		assert.Nil(t, job.Result)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "h", time.Now())))
		require.NoError(t, repo.MarkRunning(ctx, "job-1"))
		require.NoError(t, repo.Fail(ctx, "job-1", "boom", time.Now()))

		assert.ErrorIs(t, repo.MarkRunning(ctx, "job-1"), entity.ErrJobFinished)
		assert.ErrorIs(t, repo.Complete(ctx, "job-1", &entity.JobResult{}, time.Now()), entity.ErrJobFinished)
		assert.ErrorIs(t, repo.Fail(ctx, "job-1", "again", time.Now()), entity.ErrJobFinished)

		job, err := repo.FindByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StateFailed, job.State)
		assert.Equal(t, "boom", job.Error)
	})

	t.Run("completion requires running", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "h", time.Now())))

		assert.ErrorIs(t, repo.Complete(ctx, "job-1", &entity.JobResult{}, time.Now()), entity.ErrJobFinished)

		job, err := repo.FindByID(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, entity.StatePending, job.State)
	})

	t.Run("unknown job transitions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		assert.ErrorIs(t, repo.MarkRunning(ctx, "ghost"), entity.ErrJobNotFound)
		assert.ErrorIs(t, repo.Complete(ctx, "ghost", &entity.JobResult{}, time.Now()), entity.ErrJobNotFound)
		assert.ErrorIs(t, repo.Fail(ctx, "ghost", "x", time.Now()), entity.ErrJobNotFound)
	})
}
