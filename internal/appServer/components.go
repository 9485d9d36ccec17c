package appServer

import (
	"fmt"
	"io"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/database"
	postgresRepo "github.com/ds124wfegd/facesvg/internal/database/postgres"
	redisRepo "github.com/ds124wfegd/facesvg/internal/database/redis"
	"github.com/ds124wfegd/facesvg/internal/pkg/facedetect"
	"github.com/ds124wfegd/facesvg/internal/pkg/kafka"
	"github.com/ds124wfegd/facesvg/internal/pkg/postgres"
	"github.com/ds124wfegd/facesvg/internal/pkg/processor"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/ds124wfegd/facesvg/internal/pkg/rabbitMQ"
	"github.com/ds124wfegd/facesvg/internal/pkg/redis"
	"github.com/ds124wfegd/facesvg/internal/pkg/storage"
	"github.com/sirupsen/logrus"
)

const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Queue pairs the submit side and the worker side of one dispatch driver.
type Queue struct {
	Dispatcher queue.Dispatcher
	Consumer   queue.Consumer
	Driver     string
}

// closers collects resources to release on shutdown, in reverse order.
type closers []io.Closer

func (c closers) Close() {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i].Close(); err != nil {
			logrus.WithError(err).Error("failed to close resource")
		}
	}
}

type closeFunc func() error

func (f closeFunc) Close() error { return f() }

// NewRepository opens the job store selected by store.driver.
func NewRepository(cfg *config.Config) (database.JobRepository, io.Closer, error) {
	switch cfg.Store.Driver {
	case "", StoreMemory:
		return database.NewMemoryRepository(), closeFunc(func() error { return nil }), nil
	case StoreFile:
		return database.NewFileRepository(storage.NewFileStorage(cfg.Store.Path)), closeFunc(func() error { return nil }), nil
	case StoreRedis:
		client, err := redis.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return redisRepo.NewJobRepository(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL), client, nil
	case StorePostgres:
		db, err := postgres.NewPostgresDB(&cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgresRepo.NewJobRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewQueue connects the dispatch driver selected by queue.driver.
func NewQueue(cfg *config.Config) (*Queue, io.Closer, error) {
	switch cfg.Queue.Driver {
	case "", queue.DriverMemory:
		q := queue.NewMemoryQueue(cfg.Queue.Capacity)
		return &Queue{Dispatcher: q, Consumer: q, Driver: queue.DriverMemory}, q, nil
	case queue.DriverKafka:
		producer := kafka.NewProducer(cfg.Queue.Kafka)
		consumer := kafka.NewConsumer(cfg.Queue.Kafka)
		return &Queue{Dispatcher: producer, Consumer: consumer, Driver: queue.DriverKafka}, producer, nil
	case queue.DriverRabbitMQ:
		rabbit, err := rabbitMQ.NewRabbitMQ(cfg.Queue.Rabbit)
		if err != nil {
			return nil, nil, err
		}
		return &Queue{Dispatcher: rabbit, Consumer: rabbit, Driver: queue.DriverRabbitMQ}, rabbit, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}
}

func NewProcessor(cfg *config.Config) (processor.FaceProcessor, error) {
	detector, err := facedetect.New(cfg.Pipeline.FaceDetector, cfg.Pipeline.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("face detector: %w", err)
	}
	return processor.NewFaceProcessor(detector), nil
}
