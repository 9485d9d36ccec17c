package appServer

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/facetest"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRepository(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	tests := []struct {
		name    string
		store   config.StoreConfig
		wantErr bool
	}{
		{name: "memory", store: config.StoreConfig{Driver: StoreMemory}},
		{name: "default", store: config.StoreConfig{}},
		{name: "file", store: config.StoreConfig{Driver: StoreFile, Path: t.TempDir()}},
		{name: "redis", store: config.StoreConfig{Driver: StoreRedis}},
		{name: "unknown", store: config.StoreConfig{Driver: "cassandra"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{
				Store: tt.store,
				Redis: config.RedisConfig{Host: mr.Host(), Port: port, KeyPrefix: "test"},
			}

			repo, closer, err := NewRepository(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer closer.Close()

			ctx := context.Background()
			require.NoError(t, repo.Create(ctx, entity.NewJob("job-1", "hash", time.Now())))
			job, err := repo.FindByID(ctx, "job-1")
			require.NoError(t, err)
			assert.Equal(t, entity.StatePending, job.State)
		})
	}
}

func TestNewQueue(t *testing.T) {
	q, closer, err := NewQueue(&config.Config{Queue: config.QueueConfig{Driver: queue.DriverMemory, Capacity: 4}})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, queue.DriverMemory, q.Driver)
	assert.Same(t, q.Dispatcher, q.Consumer)

	_, _, err = NewQueue(&config.Config{Queue: config.QueueConfig{Driver: "sqs"}})
	assert.Error(t, err)
}

func TestNewProcessor(t *testing.T) {
	tests := []struct {
		name     string
		pipeline config.PipelineConfig
		wantErr  bool
	}{
		{name: "skin tone", pipeline: config.PipelineConfig{FaceDetector: "skintone"}},
		{name: "no detector", pipeline: config.PipelineConfig{FaceDetector: "none"}},
		{name: "missing cascade", pipeline: config.PipelineConfig{FaceDetector: "pigo", CascadePath: "/nonexistent/facefinder"}, wantErr: true},
		{name: "unknown", pipeline: config.PipelineConfig{FaceDetector: "magic"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProcessor(&config.Config{Pipeline: tt.pipeline})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			result, err := p.Process(facetest.Input())
			require.NoError(t, err)
			assert.NotEmpty(t, result.SVG)
		})
	}
}

func TestRunProcessorRejectsMemoryQueue(t *testing.T) {
	err := RunProcessor(&config.Config{Queue: config.QueueConfig{Driver: queue.DriverMemory}})

	assert.ErrorContains(t, err, "in-process")
}
