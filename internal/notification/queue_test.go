package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeConfirm struct {
	acked chan bool
}

func newFakeConfirm() *fakeConfirm {
	return &fakeConfirm{acked: make(chan bool, 1)}
}

func (c *fakeConfirm) WaitContext(ctx context.Context) (bool, error) {
	select {
	case ok := <-c.acked:
		return ok, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

type sentMessage struct {
	queue string
	msg   amqp.Publishing
}

// fakeBroker hands out one confirmation per message id.
type fakeBroker struct {
	mu       sync.Mutex
	sent     []sentMessage
	confirms map[string]*fakeConfirm
	err      error
}

func (b *fakeBroker) send(_ context.Context, queue string, msg amqp.Publishing) (confirmation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	b.sent = append(b.sent, sentMessage{queue: queue, msg: msg})
	return b.confirms[msg.MessageId], nil
}

func newTestQueue(b *fakeBroker, log *zap.Logger) *Queue {
	return &Queue{send: b.send, log: log, name: "notifications", dlq: "notifications.dlq"}
}

func ackedConfirm(ok bool) *fakeConfirm {
	c := newFakeConfirm()
	c.acked <- ok
	return c
}

func TestQueue_PublishWaitsForOwnConfirm(t *testing.T) {
	first, second := newFakeConfirm(), newFakeConfirm()
	b := &fakeBroker{confirms: map[string]*fakeConfirm{"job-1": first, "job-2": second}}
	q := newTestQueue(b, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- q.Publish(ctx, Job{ID: "job-1", Type: JobSlotFreed}) }()
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.sent) == 1
	}, time.Second, 5*time.Millisecond)

	// The second message is confirmed first; the first is nacked afterwards.
	second.acked <- true
	require.NoError(t, q.Publish(ctx, Job{ID: "job-2", Type: JobSlotFreed}))

	first.acked <- false
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nacked")
}

func TestQueue_PublishRoutes(t *testing.T) {
	b := &fakeBroker{confirms: map[string]*fakeConfirm{
		"job-1": ackedConfirm(true),
		"job-2": ackedConfirm(true),
	}}
	q := newTestQueue(b, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Job{ID: "job-1", Type: JobDoctorCanceled}))
	require.NoError(t, q.DeadLetter(ctx, Job{ID: "job-2", Type: JobDoctorCanceled}))

	require.Len(t, b.sent, 2)
	assert.Equal(t, "notifications", b.sent[0].queue)
	assert.Equal(t, "notifications.dlq", b.sent[1].queue)
	assert.Equal(t, amqp.Persistent, b.sent[0].msg.DeliveryMode)
	assert.Equal(t, string(JobDoctorCanceled), b.sent[0].msg.Type)
	assert.Equal(t, contentTypeJSON, b.sent[0].msg.ContentType)
}

func TestQueue_PublishErrors(t *testing.T) {
	ctx := context.Background()

	b := &fakeBroker{err: errors.New("channel/connection is not open")}
	err := newTestQueue(b, zap.NewNop()).Publish(ctx, Job{ID: "job-1", Type: JobSlotFreed})
	assert.ErrorContains(t, err, "not open")

	b = &fakeBroker{confirms: map[string]*fakeConfirm{"job-1": newFakeConfirm()}}
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err = newTestQueue(b, zap.NewNop()).Publish(short, Job{ID: "job-1", Type: JobSlotFreed})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_MalformedDeliveryDeadLettered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	b := &fakeBroker{confirms: map[string]*fakeConfirm{"bad-1": ackedConfirm(false)}}
	q := newTestQueue(b, zap.New(core))

	handled := false
	q.deliver(context.Background(), amqp.Delivery{MessageId: "bad-1", Body: []byte("{not json")},
		func(context.Context, Job) error {
			handled = true
			return nil
		})

	assert.False(t, handled)
	require.Len(t, b.sent, 1)
	assert.Equal(t, "notifications.dlq", b.sent[0].queue)
	assert.Equal(t, []byte("{not json"), b.sent[0].msg.Body)
	assert.Equal(t, 1, logs.FilterMessage("dead-letter malformed job").Len())
}
