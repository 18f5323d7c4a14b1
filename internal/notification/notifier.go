package notification

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/doctor-appointment-booking/internal/appointment"
	"github.com/hackgods/doctor-appointment-booking/internal/metrics"
)

// Notifier turns domain events into queued jobs. It satisfies the notifier
// ports of the appointment and payment services.
type Notifier struct {
	pub     Publisher
	metrics *metrics.Collector
}

func NewNotifier(pub Publisher, m *metrics.Collector) *Notifier {
	return &Notifier{pub: pub, metrics: m}
}

func (n *Notifier) Enqueue(ctx context.Context, ev appointment.Event) error {
	job, err := JobFromEvent(ev)
	if err != nil {
		return err
	}
	return n.publish(ctx, job)
}

func (n *Notifier) PaymentCompleted(ctx context.Context, paymentID uuid.UUID) error {
	job := newJob(JobPaymentCompleted)
	job.PaymentID = &paymentID
	return n.publish(ctx, job)
}

func (n *Notifier) publish(ctx context.Context, job Job) error {
	err := n.pub.Publish(ctx, job)
	n.metrics.NotificationPublished(string(job.Type), err)
	return err
}
