package kafka

import (
	"context"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Producer publishes processing tasks keyed by job id, so redeliveries of
// one job stay on one partition.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	logrus.WithField("brokers", cfg.Brokers).Info("Kafka producer configured")
	ensureTopic(cfg)

	return &Producer{writer: writer, topic: cfg.Topic}
}

// ensureTopic creates the topic on a best-effort basis; the broker may
// auto-create it or it may already exist.
func ensureTopic(cfg config.KafkaConfig) {
	if len(cfg.Brokers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		logrus.Warnf("Kafka connection failed: %v", err)
		return
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.Topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		logrus.Infof("Could not create topic (might already exist): %v", err)
		return
	}
	logrus.Infof("Created topic: %s", cfg.Topic)
}

func (p *Producer) Enqueue(ctx context.Context, task entity.ProcessingTask) error {
	msg, err := newMessage(task)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logrus.WithError(err).WithField("job_id", task.JobID).Error("Failed to write message to Kafka")
		return err
	}

	logrus.WithField("job_id", task.JobID).Debugf("Message sent to topic: %s", p.topic)
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func newMessage(task entity.ProcessingTask) (kafka.Message, error) {
	value, err := queue.Encode(task)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(task.JobID),
		Value: value,
		Time:  time.Now(),
	}, nil
}
