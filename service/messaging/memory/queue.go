package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/internal/idgen"
	"github.com/viant/mediaflow/service/messaging"
)

var (
	// ErrProcessed is returned when a message is acknowledged twice.
	ErrProcessed = errors.New("message already processed")
	// ErrClosed is returned when publishing to a closed queue.
	ErrClosed = errors.New("queue closed")
)

// Config for memory queue implementation
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 100,
	}
}

// Message is an in-memory queue entry
type Message[T any] struct {
	id        string
	payload   T
	queue     *Queue[T]
	attempts  int
	mu        sync.Mutex
	processed bool
	createdAt time.Time
	lastErr   error
}

// ID returns the message id
func (m *Message[T]) ID() string { return m.id }

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Attempts returns the number of failed deliveries so far
func (m *Message[T]) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Err returns the last Nack error
func (m *Message[T]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	return nil
}

// Nack records a failure and schedules redelivery or dead-lettering
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return ErrProcessed
	}
	m.processed = true
	m.attempts++
	m.lastErr = err
	if m.attempts <= m.queue.config.MaxRetries {
		retry := &Message[T]{
			id:        m.id,
			payload:   m.payload,
			queue:     m.queue,
			attempts:  m.attempts,
			createdAt: m.createdAt,
			lastErr:   err,
		}
		go m.queue.redeliver(retry)
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.dlqMu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.dlqMu.Unlock()
	}
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	dlq      []*Message[T]
	config   Config
	dlqMu    sync.Mutex
	closed   chan struct{}
	once     sync.Once
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
		closed:   make(chan struct{}),
	}
}

// Publish adds a copy of t to the queue, blocking while the buffer is full
// until ctx is done or the queue is closed
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	msg := &Message[T]{
		id:        idgen.New(),
		payload:   *t,
		queue:     q,
		createdAt: clock.Now(),
	}
	select {
	case q.messages <- msg:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume retrieves a single message from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close rejects further publishing and stops pending redeliveries
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.closed) })
}

func (q *Queue[T]) redeliver(msg *Message[T]) {
	timer := time.NewTimer(q.config.RetryDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-q.closed:
		return
	}
	select {
	case q.messages <- msg:
	case <-q.closed:
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	return len(q.messages)
}

// DeadLetters returns the messages that exhausted their retries
func (q *Queue[T]) DeadLetters() []*Message[T] {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return append([]*Message[T](nil), q.dlq...)
}

var _ messaging.Queue[struct{}] = (*Queue[struct{}])(nil)
