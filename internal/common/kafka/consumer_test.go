package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeReader hands out queued messages in order and records commits.
type fakeReader struct {
	mu        sync.Mutex
	pending   []kafkago.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func newTestConsumer(offsets ...int64) (*Consumer, *fakeReader) {
	reader := &fakeReader{}
	for _, o := range offsets {
		reader.pending = append(reader.pending, kafkago.Message{Offset: o})
	}
	return &Consumer{
		reader:     reader,
		logger:     zap.NewNop(),
		minBackoff: time.Millisecond,
		maxBackoff: 4 * time.Millisecond,
	}, reader
}

func TestConsumer_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	c, reader := newTestConsumer(0, 1)

	var (
		mu       sync.Mutex
		handled  []int64
		failures = 2
	)
	handler := func(_ context.Context, msg kafkago.Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, msg.Offset)
		if msg.Offset == 0 && failures > 0 {
			failures--
			return errors.New("ledger busy")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, handler) }()

	require.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{0, 0, 0, 1}, handled, "the failed message is redelivered before the next one")
	assert.Equal(t, []int64{0, 1}, reader.commits())
}

func TestConsumer_CancelWhileRetryingLeavesMessageUncommitted(t *testing.T) {
	c, reader := newTestConsumer(7, 8)

	attempts := make(chan int64, 100)
	handler := func(_ context.Context, msg kafkago.Message) error {
		attempts <- msg.Offset
		return errors.New("database unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Consume(ctx, handler) }()

	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(7), <-attempts)
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, reader.commits())
}
