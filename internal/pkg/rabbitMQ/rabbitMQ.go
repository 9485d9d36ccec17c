package rabbitMQ

import (
	"context"
	"fmt"
	"time"

	"github.com/ds124wfegd/facesvg/config"
	"github.com/ds124wfegd/facesvg/internal/entity"
	"github.com/ds124wfegd/facesvg/internal/pkg/queue"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// RabbitMQ publishes tasks to a durable queue and consumes them with manual
// acknowledgements.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	config  config.RabbitMQConfig
}

func NewRabbitMQ(cfg config.RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := declareQueue(channel, cfg.QueueName)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	logrus.WithField("queue", q.Name).Info("RabbitMQ connected")
	return &RabbitMQ{
		conn:    conn,
		channel: channel,
		queue:   q,
		config:  cfg,
	}, nil
}

func declareQueue(channel *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := channel.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-queue-mode": "lazy",
		},
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare queue: %w", err)
	}
	return q, nil
}

func (r *RabbitMQ) Enqueue(ctx context.Context, task entity.ProcessingTask) error {
	body, err := queue.Encode(task)
	if err != nil {
		return err
	}

	err = r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,        // mandatory
		false,        // immediate
		publishing(task.JobID, body),
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

func publishing(jobID string, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    jobID,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	}
}

// Consume opens its own channel with prefetch 1, so parallel Consume calls
// each hold at most one unacknowledged task.
func (r *RabbitMQ) Consume(ctx context.Context, handle queue.Handler) error {
	channel, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	// Настраиваем QoS
	if err := channel.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := channel.Consume(
		r.queue.Name, // queue
		"",           // consumer
		false,        // auto-ack
		false,        // exclusive
		false,        // no-local
		false,        // no-wait
		nil,          // args
	)
	if err != nil {
		return fmt.Errorf("failed to consume messages: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			settle(ctx, msg, msg.Body, handle)
		}
	}
}

// acknowledger is the part of amqp.Delivery that settle needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks handled and malformed deliveries and requeues the ones whose
// handler failed.
func settle(ctx context.Context, ack acknowledger, body []byte, handle queue.Handler) {
	task, err := queue.Decode(body)
	if err != nil {
		logrus.WithError(err).Error("Dropping malformed task")
		logAckError(ack.Ack(false), "")
		return
	}

	if err := handle(ctx, task); err != nil {
		logrus.WithError(err).WithField("job_id", task.JobID).Warn("Failed to process message, it will be retried")
		if err := ack.Nack(false, true); err != nil {
			logrus.WithError(err).WithField("job_id", task.JobID).Error("Failed to requeue message")
		}
		return
	}
	logAckError(ack.Ack(false), task.JobID)
}

// logAckError reports a failed ack; the broker redelivers the message once
// the channel closes.
func logAckError(err error, jobID string) {
	if err == nil {
		return
	}
	log := logrus.WithError(err)
	if jobID != "" {
		log = log.WithField("job_id", jobID)
	}
	log.Error("Failed to acknowledge message")
}

func (r *RabbitMQ) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}

	return nil
}

// HealthCheck проверяет соединение с RabbitMQ
func (r *RabbitMQ) HealthCheck() error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}
	return nil
}
