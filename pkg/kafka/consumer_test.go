package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	applogger "CaesarEcon/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

type funcHandler struct {
	topic string
	fn    func(context.Context, []byte) error
}

func (h funcHandler) Topic() string                              { return h.topic }
func (h funcHandler) Handle(ctx context.Context, b []byte) error { return h.fn(ctx, b) }

func startConsumer(t *testing.T, r *fakeReader, h MessageHandler, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithReaderFactory(func(*ConsumerConfig, string) Reader { return r }),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
		WithConsumerWorkers(2),
	}, opts...)
	c, err := NewConsumer(applogger.NewNop(), opts...)
	require.NoError(t, err)
	c.RegisterHandler(h)
	require.NoError(t, c.Start())
	return c
}

func stop(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))
}

func TestConsumerCommitsHandledMessages(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(
		kafka.Message{Topic: "obs", Offset: 1, Value: []byte("a")},
		kafka.Message{Topic: "obs", Offset: 2, Value: []byte("b")},
	)
	var handled atomic.Int32
	c := startConsumer(t, r, funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		handled.Add(1)
		return nil
	}})

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 5*time.Millisecond)
	stop(t, c)

	assert.EqualValues(t, 2, handled.Load())
	assert.ElementsMatch(t, []int64{1, 2}, r.commits())
	assert.True(t, r.closed)
}

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(kafka.Message{Topic: "obs", Offset: 7, Key: []byte("XAU"), Value: []byte("bad")})
	dlq := &fakeWriter{}
	var attempts atomic.Int32
	c := startConsumer(t, r, funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		attempts.Add(1)
		return errors.New("downstream unavailable")
	}}, WithConsumerDLQ("obs.dlq"), WithDLQWriter(dlq))

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, time.Second, 5*time.Millisecond)
	stop(t, c)

	assert.EqualValues(t, 3, attempts.Load())
	out := dlq.written()
	require.Len(t, out, 1)
	assert.Equal(t, "obs.dlq", out[0].Topic)
	assert.Equal(t, []byte("bad"), out[0].Value)
	assert.Equal(t, "source_topic", out[0].Headers[0].Key)
}

func TestConsumerPermanentErrorSkipsRetries(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(kafka.Message{Topic: "obs", Offset: 3, Value: []byte("{")})
	dlq := &fakeWriter{}
	var attempts atomic.Int32
	c := startConsumer(t, r, funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		attempts.Add(1)
		return Permanent(errors.New("malformed"))
	}}, WithConsumerDLQ("obs.dlq"), WithDLQWriter(dlq))

	require.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	stop(t, c)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestConsumerWithoutDLQLeavesFailuresUncommitted(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(kafka.Message{Topic: "obs", Offset: 9, Value: []byte("x")})
	var attempts atomic.Int32
	c := startConsumer(t, r, funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		attempts.Add(1)
		return Permanent(errors.New("nope"))
	}})

	require.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, 5*time.Millisecond)
	stop(t, c)
	assert.Empty(t, r.commits())
}

func TestConsumerRecoversHandlerPanic(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newFakeReader(kafka.Message{Topic: "obs", Offset: 1, Value: []byte("x")})
	dlq := &fakeWriter{}
	c := startConsumer(t, r, funcHandler{topic: "obs", fn: func(context.Context, []byte) error {
		panic("boom")
	}}, WithConsumerDLQ("obs.dlq"), WithDLQWriter(dlq))

	require.Eventually(t, func() bool { return len(dlq.written()) == 1 }, time.Second, 5*time.Millisecond)
	stop(t, c)
}

func TestConsumerRequiresHandlers(t *testing.T) {
	c, err := NewConsumer(applogger.NewNop(), WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	assert.Error(t, c.Start())

	_, err = NewConsumer(applogger.NewNop())
	assert.Error(t, err)
}

func TestBackoffWithJitterStaysInRange(t *testing.T) {
	for attempt := 1; attempt < 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
}
