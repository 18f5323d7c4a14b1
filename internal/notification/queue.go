package notification

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const contentTypeJSON = "application/json"

// Publisher puts jobs on the work queue or on its dead-letter queue.
type Publisher interface {
	Publish(ctx context.Context, job Job) error
	DeadLetter(ctx context.Context, job Job) error
}

// Queue is a durable RabbitMQ work queue with a companion dead-letter
// queue. Every publish waits for the broker's confirm of that message.
type Queue struct {
	ch   *amqp.Channel
	send publishFunc
	log  *zap.Logger
	name string
	dlq  string
}

// confirmation is the broker's pending answer for one published message.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type publishFunc func(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error)

func channelPublisher(ch *amqp.Channel) publishFunc {
	return func(ctx context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
		dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, msg)
		if err != nil {
			return nil, err
		}
		if dc == nil {
			return nil, errors.New("channel not in confirm mode")
		}
		return dc, nil
	}
}

func NewQueue(conn *amqp.Connection, name string, prefetch int, log *zap.Logger) (*Queue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	dlq := name + ".dlq"
	for _, q := range []string{name, dlq} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &Queue{
		ch:   ch,
		send: channelPublisher(ch),
		log:  log,
		name: name,
		dlq:  dlq,
	}, nil
}

func (q *Queue) Publish(ctx context.Context, job Job) error {
	return q.publish(ctx, q.name, job)
}

func (q *Queue) DeadLetter(ctx context.Context, job Job) error {
	return q.publish(ctx, q.dlq, job)
}

func (q *Queue) publish(ctx context.Context, queue string, job Job) error {
	body, err := job.Encode()
	if err != nil {
		return err
	}

	return q.confirmed(ctx, queue, amqp.Publishing{
		ContentType:  contentTypeJSON,
		MessageId:    job.ID,
		Type:         string(job.Type),
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
}

// confirmed publishes msg and blocks until the broker acks or nacks it.
func (q *Queue) confirmed(ctx context.Context, queue string, msg amqp.Publishing) error {
	dc, err := q.send(ctx, queue, msg)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", queue, err)
	}
	if !acked {
		return fmt.Errorf("publish to %s: message nacked by broker", queue)
	}
	return nil
}

// Consume delivers jobs to handle until ctx is done. A delivery is acked
// once handle returns nil; on error it is requeued. Undecodable bodies are
// moved to the dead-letter queue as-is.
func (q *Queue) Consume(ctx context.Context, handle func(ctx context.Context, job Job) error) error {
	deliveries, err := q.ch.Consume(q.name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.name, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			q.deliver(ctx, d, handle)
		}
	}
}

func (q *Queue) deliver(ctx context.Context, d amqp.Delivery, handle func(ctx context.Context, job Job) error) {
	job, err := DecodeJob(d.Body)
	if err != nil {
		q.log.Error("dropping malformed job", zap.String("message_id", d.MessageId), zap.Error(err))
		q.deadLetterRaw(ctx, d)
		_ = d.Ack(false)
		return
	}

	if err := handle(ctx, job); err != nil {
		q.log.Error("job handling failed, requeueing",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Error(err),
		)
		_ = d.Nack(false, true)
		return
	}

	if err := d.Ack(false); err != nil {
		q.log.Warn("ack failed", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (q *Queue) deadLetterRaw(ctx context.Context, d amqp.Delivery) {
	err := q.confirmed(ctx, q.dlq, amqp.Publishing{
		ContentType:  d.ContentType,
		MessageId:    d.MessageId,
		Body:         d.Body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		q.log.Error("dead-letter malformed job", zap.String("message_id", d.MessageId), zap.Error(err))
	}
}

func (q *Queue) Close() error {
	return q.ch.Close()
}
