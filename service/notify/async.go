package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/viant/mediaflow/service/messaging"
)

// Publisher hands events to a queue so that mail I/O never delays the actor
type Publisher struct {
	queue   messaging.Queue[Job]
	timeout time.Duration
	logger  *logrus.Entry
}

var _ Notifier = (*Publisher)(nil)

// NewPublisher creates a queue-backed notifier; timeout bounds how long
// Notify waits for room in the queue and defaults to the send timeout.
func NewPublisher(queue messaging.Queue[Job], timeout time.Duration, logger *logrus.Entry) *Publisher {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Publisher{queue: queue, timeout: timeout, logger: logger}
}

// Notify enqueues event; the returned report is marked Queued on success
func (p *Publisher) Notify(ctx context.Context, event Event) *Report {
	report := &Report{Event: event.Kind(), Request: event.Request().Number}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.queue.Publish(ctx, NewJob(event)); err != nil {
		report.Deliveries = append(report.Deliveries, &Delivery{Err: fmt.Errorf("failed to enqueue notification: %w", err)})
		p.logger.WithFields(logrus.Fields{"request": report.Request, "event": report.Event}).
			WithError(err).Error("failed to enqueue notification")
		return report
	}
	report.Queued = true
	return report
}

// Worker consumes queued jobs and dispatches them
type Worker struct {
	queue    messaging.Queue[Job]
	notifier Notifier
	logger   *logrus.Entry
}

// NewWorker creates a worker dispatching through notifier
func NewWorker(queue messaging.Queue[Job], notifier Notifier, logger *logrus.Entry) *Worker {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Worker{queue: queue, notifier: notifier, logger: logger}
}

// Run processes jobs until ctx is done
func (w *Worker) Run(ctx context.Context) error {
	for {
		msg, err := w.queue.Consume(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("failed to consume notification job: %w", err)
		}
		w.handle(ctx, msg)
	}
}

// handle acks every job except those where nothing at all could be sent;
// those are retried as a whole since no recipient has seen them yet.
func (w *Worker) handle(ctx context.Context, msg messaging.Message[Job]) {
	job := msg.T()
	logger := w.logger.WithFields(logrus.Fields{"event": job.Kind, "job": msg.ID()})
	event, err := job.Event()
	if err != nil {
		logger.WithError(err).Error("dropping invalid notification job")
		_ = msg.Ack()
		return
	}
	logger = logger.WithField("request", event.Request().Number)
	report := w.notifier.Notify(ctx, event)
	if failed := report.Failed(); len(failed) > 0 && report.Sent() == 0 {
		logger.Warnf("no notification delivered, %d failures, scheduling retry", len(failed))
		if err = msg.Nack(failed[0].Err); err != nil {
			logger.WithError(err).Error("failed to nack notification job")
		}
		return
	}
	if err = msg.Ack(); err != nil {
		logger.WithError(err).Error("failed to ack notification job")
	}
}
