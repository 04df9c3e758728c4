// Package messaging defines the queue contract used to hand notification
// jobs from the workflow engine to a background worker.
package messaging

import (
	"context"
)

// Queue is a typed message queue
type Queue[T any] interface {
	// Publish enqueues a copy of t
	Publish(ctx context.Context, t *T) error

	// Consume blocks until a message is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message is a consumed queue entry
type Message[T any] interface {
	// ID returns the message identifier
	ID() string

	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack reports a processing failure; the message is redelivered until
	// retries are exhausted
	Nack(err error) error
}
