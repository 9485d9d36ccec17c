package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/database"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/facedetect"
	"github.com/ds124wfegd/facesvg/internal/pkg/facetest"
	"github.com/ds124wfegd/facesvg/internal/pkg/processor"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	delay  time.Duration
	result *entity.JobResult
	err    error
	calls  atomic.Int32
}

func (p *stubProcessor) Process(in entity.JobInput) (*entity.JobResult, error) {
	p.calls.Add(1)
	time.Sleep(p.delay)
	return p.result, p.err
}

type failingRepository struct {
	database.JobRepository
}

func (r failingRepository) Complete(ctx context.Context, id string, result *entity.JobResult, at time.Time) error {
	return errors.New("store unavailable")
}

func submit(t *testing.T, repo database.JobRepository, id string, in entity.JobInput) entity.ProcessingTask {
	t.Helper()
	require.NoError(t, repo.Create(context.Background(), entity.NewJob(id, "hash-"+id, time.Now())))
	return entity.ProcessingTask{
		JobID:        id,
		ContentHash:  "hash-" + id,
		Image:        in.Image,
		Landmarks:    in.Landmarks,
		Segmentation: in.Segmentation,
	}
}

func TestHandleSuccess(t *testing.T) {
	repo := database.NewMemoryRepository()
	w := NewWorker(repo, processor.NewFaceProcessor(nil), config.WorkerConfig{})
	task := submit(t, repo, "job-1", facetest.Input())

	require.NoError(t, w.Handle(context.Background(), task))

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateSucceeded, job.State)
	require.NotNil(t, job.Result)
	assert.NotEmpty(t, job.Result.SVG)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, job.Result.MaskContours.Regions())
	assert.Empty(t, job.Error)
	assert.NotNil(t, job.CompletedAt)
}

func TestHandleFailures(t *testing.T) {
	tests := []struct {
		name    string
		input   func() entity.JobInput
		message string
	}{
		{
			name: "undecodable image",
			input: func() entity.JobInput {
				in := facetest.Input()
				in.Image = []byte("not an image")
				return in
			},
			message: entity.ErrDecode.Error(),
		},
		{
			name: "undecodable segmentation map",
			input: func() entity.JobInput {
				in := facetest.Input()
				in.Segmentation = []byte{0x00}
				return in
			},
			message: entity.ErrDecode.Error(),
		},
		{
			name: "no face",
			input: func() entity.JobInput {
				in := facetest.Input()
				in.Image = facetest.PNG(facetest.Blank())
				return in
			},
			message: entity.ErrNoFaceDetected.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := database.NewMemoryRepository()
			detector, err := facedetect.New(facedetect.KindSkinTone, "")
			require.NoError(t, err)
			w := NewWorker(repo, processor.NewFaceProcessor(detector), config.WorkerConfig{})
			task := submit(t, repo, "job-1", tt.input())

			require.NoError(t, w.Handle(context.Background(), task))

			job, err := repo.FindByID(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, entity.StateFailed, job.State)
			assert.Nil(t, job.Result)
			assert.Contains(t, job.Error, tt.message)
		})
	}
}

func TestHandleDuplicateDeliveryIsSkipped(t *testing.T) {
	repo := database.NewMemoryRepository()
	stub := &stubProcessor{result: &entity.JobResult{SVG: "c3Zn"}}
	w := NewWorker(repo, stub, config.WorkerConfig{})
	task := submit(t, repo, "job-1", facetest.Input())

	require.NoError(t, w.Handle(context.Background(), task))
	require.NoError(t, w.Handle(context.Background(), task))

	assert.Equal(t, int32(1), stub.calls.Load())
	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateSucceeded, job.State)
}

func TestHandleUnknownJobIsDropped(t *testing.T) {
	stub := &stubProcessor{}
	w := NewWorker(database.NewMemoryRepository(), stub, config.WorkerConfig{})

	err := w.Handle(context.Background(), entity.ProcessingTask{JobID: "ghost"})

	assert.NoError(t, err)
	assert.Zero(t, stub.calls.Load())
}

func TestHandleTimeout(t *testing.T) {
	repo := database.NewMemoryRepository()
	stub := &stubProcessor{delay: 200 * time.Millisecond, result: &entity.JobResult{SVG: "c3Zn"}}
	w := NewWorker(repo, stub, config.WorkerConfig{JobTimeout: 20 * time.Millisecond})
	task := submit(t, repo, "job-1", facetest.Input())

	require.NoError(t, w.Handle(context.Background(), task))

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateFailed, job.State)
	assert.Equal(t, "job timed out after 20ms", job.Error)

	time.Sleep(250 * time.Millisecond)
	job, err = repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateFailed, job.State)
	assert.Nil(t, job.Result)
}

func TestHandleStoreErrorIsReturned(t *testing.T) {
	repo := failingRepository{JobRepository: database.NewMemoryRepository()}
	w := NewWorker(repo, &stubProcessor{result: &entity.JobResult{SVG: "c3Zn"}}, config.WorkerConfig{})
	task := submit(t, repo, "job-1", facetest.Input())

	err := w.Handle(context.Background(), task)

	assert.Error(t, err)
}

func TestSimulationDelay(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.WorkerConfig
		minDelay time.Duration
		maxDelay time.Duration
	}{
		{name: "delay applied", cfg: config.WorkerConfig{SimulationDelay: 50 * time.Millisecond}, minDelay: 50 * time.Millisecond, maxDelay: time.Second},
		{name: "load test mode skips delay", cfg: config.WorkerConfig{SimulationDelay: time.Second, LoadTestMode: true}, maxDelay: 500 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := database.NewMemoryRepository()
			w := NewWorker(repo, &stubProcessor{result: &entity.JobResult{SVG: "c3Zn"}}, tt.cfg)
			task := submit(t, repo, "job-1", facetest.Input())

			start := time.Now()
			require.NoError(t, w.Handle(context.Background(), task))
			elapsed := time.Since(start)

			assert.GreaterOrEqual(t, elapsed, tt.minDelay)
			assert.Less(t, elapsed, tt.maxDelay)
		})
	}
}

func TestRunDrainsQueue(t *testing.T) {
	repo := database.NewMemoryRepository()
	q := queue.NewMemoryQueue(8)
	w := NewWorker(repo, processor.NewFaceProcessor(nil), config.WorkerConfig{})

	ids := []string{"job-1", "job-2", "job-3"}
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), submit(t, repo, id, facetest.Input())))
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, q, 2)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		for _, id := range ids {
			job, err := repo.FindByID(context.Background(), id)
			if err != nil || job == nil || job.State != entity.StateSucceeded {
				return false
			}
		}
		return true
	}, 10*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestAbandon(t *testing.T) {
	cause := errors.New("store unavailable")

	tests := []struct {
		name      string
		prepare   func(repo database.JobRepository)
		wantState entity.JobState
		wantError string
	}{
		{
			name:      "pending job fails",
			prepare:   func(database.JobRepository) {},
			wantState: entity.StateFailed,
			wantError: "job abandoned after repeated failures: store unavailable",
		},
		{
			name: "running job fails",
			prepare: func(repo database.JobRepository) {
				require.NoError(t, repo.MarkRunning(context.Background(), "job-1"))
			},
			wantState: entity.StateFailed,
			wantError: "job abandoned after repeated failures: store unavailable",
		},
		{
			name: "finished job is untouched",
			prepare: func(repo database.JobRepository) {
				ctx := context.Background()
				require.NoError(t, repo.MarkRunning(ctx, "job-1"))
				require.NoError(t, repo.Complete(ctx, "job-1", &entity.JobResult{SVG: "c3Zn"}, time.Now()))
			},
			wantState: entity.StateSucceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := database.NewMemoryRepository()
			w := NewWorker(repo, &stubProcessor{}, config.WorkerConfig{})
			task := submit(t, repo, "job-1", facetest.Input())
			tt.prepare(repo)

			w.Abandon(context.Background(), task, cause)

			job, err := repo.FindByID(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantState, job.State)
			assert.Equal(t, tt.wantError, job.Error)
		})
	}

	t.Run("unknown job", func(t *testing.T) {
		w := NewWorker(database.NewMemoryRepository(), &stubProcessor{}, config.WorkerConfig{})
		assert.NotPanics(t, func() {
			w.Abandon(context.Background(), entity.ProcessingTask{JobID: "missing"}, cause)
		})
	})
}

type abandoningConsumer struct {
	giveUp queue.GiveUp
}

func (c *abandoningConsumer) OnGiveUp(fn queue.GiveUp) { c.giveUp = fn }

func (c *abandoningConsumer) Consume(ctx context.Context, handle queue.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunRegistersAbandon(t *testing.T) {
	repo := database.NewMemoryRepository()
	w := NewWorker(repo, &stubProcessor{}, config.WorkerConfig{})
	task := submit(t, repo, "job-1", facetest.Input())
	consumer := &abandoningConsumer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx, consumer, 1)

	require.NotNil(t, consumer.giveUp)
	consumer.giveUp(context.Background(), task, errors.New("broker unavailable"))

	job, err := repo.FindByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StateFailed, job.State)
}

func TestRunFailsJobDroppedByFullQueue(t *testing.T) {
	repo := database.NewMemoryRepository()
	q := queue.NewMemoryQueue(1)
	w := NewWorker(repo, &stubProcessor{}, config.WorkerConfig{})
	stuck := submit(t, repo, "job-1", facetest.Input())
	other := submit(t, repo, "job-2", facetest.Input())

	// the first delivery refills the queue before its store update fails
	handled := atomic.Bool{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = q.Consume(ctx, func(ctx context.Context, task entity.ProcessingTask) error {
			if task.JobID == stuck.JobID && handled.CompareAndSwap(false, true) {
				assert.NoError(t, q.Enqueue(ctx, other))
				return errors.New("store unavailable")
			}
			return nil
		})
	}()
	q.OnGiveUp(w.Abandon)
	require.NoError(t, q.Enqueue(ctx, stuck))

	assert.Eventually(t, func() bool {
		job, err := repo.FindByID(context.Background(), stuck.JobID)
		return err == nil && job.State == entity.StateFailed
	}, 5*time.Second, 10*time.Millisecond)
}
