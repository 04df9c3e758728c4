package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type job struct {
	RequestID int64
	Event     string
}

func TestQueue(t *testing.T) {
	queue := NewQueue[job](DefaultConfig())
	defer queue.Close()
	ctx := context.Background()

	payload := job{RequestID: 7, Event: "Submitted"}
	require.NoError(t, queue.Publish(ctx, &payload))
	payload.Event = "mutated"
	assert.Equal(t, 1, queue.Size())

	message, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID())
	assert.Equal(t, job{RequestID: 7, Event: "Submitted"}, *message.T())
	assert.Equal(t, 0, queue.Size())

	assert.NoError(t, message.Ack())
	assert.True(t, errors.Is(message.Ack(), ErrProcessed))
	assert.True(t, errors.Is(message.Nack(errors.New("late")), ErrProcessed))
}

func TestQueue_Retries(t *testing.T) {
	config := DefaultConfig()
	config.MaxRetries = 2
	config.RetryDelay = 5 * time.Millisecond
	queue := NewQueue[job](config)
	defer queue.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, queue.Publish(ctx, &job{RequestID: 1, Event: "Completed"}))

	var id string
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		message, err := queue.Consume(ctx)
		require.NoError(t, err, "attempt %d", attempt)
		if id == "" {
			id = message.ID()
		}
		assert.Equal(t, id, message.ID())
		require.NoError(t, message.Nack(errors.New("smtp down")))
	}

	assert.Eventually(t, func() bool { return len(queue.DeadLetters()) == 1 }, time.Second, 5*time.Millisecond)
	dead := queue.DeadLetters()[0]
	assert.Equal(t, 3, dead.Attempts())
	assert.EqualError(t, dead.Err(), "smtp down")
	assert.Equal(t, 0, queue.Size())
}

func TestQueue_ConsumeCancelled(t *testing.T) {
	queue := NewQueue[job](Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := queue.Consume(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, errors.Is(queue.Publish(ctx, &job{}), context.Canceled))
}

func TestQueue_Closed(t *testing.T) {
	queue := NewQueue[job](Config{QueueBuffer: 1})
	ctx := context.Background()
	require.NoError(t, queue.Publish(ctx, &job{}))

	done := make(chan error, 1)
	go func() { done <- queue.Publish(ctx, &job{}) }()
	queue.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("publish still blocked after close")
	}
	assert.ErrorIs(t, queue.Publish(ctx, &job{}), ErrClosed)
	assert.Equal(t, 1, queue.Size())
}
