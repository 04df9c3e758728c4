// Package memory provides a recording mail transport for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/viant/mediaflow/internal/clock"
	"github.com/viant/mediaflow/service/mail"
)

// Sender records every message instead of delivering it
type Sender struct {
	mu       sync.Mutex
	from     string
	sent     []*mail.Message
	failures map[string]error
	delay    time.Duration
}

var _ mail.Sender = (*Sender)(nil)

// Option customises Sender
type Option func(s *Sender)

// WithFailure makes every send to recipient fail with err
func WithFailure(recipient string, err error) Option {
	return func(s *Sender) { s.failures[recipient] = err }
}

// WithDelay blocks every send for d or until the context is done
func WithDelay(d time.Duration) Option {
	return func(s *Sender) { s.delay = d }
}

// New creates a recording sender
func New(from string, options ...Option) *Sender {
	ret := &Sender{from: from, failures: map[string]error{}}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Send records the message
func (s *Sender) Send(ctx context.Context, to, subject, htmlBody string) error {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	message := &mail.Message{From: s.from, To: to, Subject: subject, HTMLBody: htmlBody, Date: clock.Now()}
	if err := message.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[to]; ok {
		return err
	}
	s.sent = append(s.sent, message)
	return nil
}

// Sent returns the recorded messages in send order
func (s *Sender) Sent() []*mail.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*mail.Message(nil), s.sent...)
}

// To returns the recorded messages addressed to recipient
func (s *Sender) To(recipient string) []*mail.Message {
	var ret []*mail.Message
	for _, message := range s.Sent() {
		if message.To == recipient {
			ret = append(ret, message)
		}
	}
	return ret
}

// Reset drops recorded messages
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
