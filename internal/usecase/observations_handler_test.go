package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"CaesarEcon/internal/domain/models"
	mid "CaesarEcon/internal/middleware"
	pkgkafka "CaesarEcon/pkg/kafka"
	applogger "CaesarEcon/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T, store *memStore, opts ...mid.PipelineOption) (*ObservationsHandler, *recMetrics) {
	h, _, m := newHandlerWith(t, store, nil, opts...)
	return h, m
}

func newHandlerWith(t *testing.T, store *memStore, pub *memPublisher, opts ...mid.PipelineOption) (*ObservationsHandler, *mid.ObservationPipeline, *recMetrics) {
	t.Helper()
	ev, m, _ := newEvaluator(t, store, pub)
	opts = append([]mid.PipelineOption{mid.WithMaxRPS(0)}, opts...)
	pipe := mid.NewObservationPipeline(ev, m, applogger.NewNop(), opts...)
	return NewObservationsHandler("caesar.observations", pipe, m, applogger.NewNop()), pipe, m
}

func TestObservationsHandlerEvaluates(t *testing.T) {
	store := &memStore{}
	h, _ := newHandler(t, store)
	assert.Equal(t, "caesar.observations", h.Topic())

	b, err := json.Marshal(models.Observation{Market: "XAU", Observables: healthyObservables()})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), b))
	assert.Equal(t, 1, store.saved())
}

func TestObservationsHandlerPermanentFailures(t *testing.T) {
	h, m := newHandler(t, &memStore{})
	ctx := context.Background()

	bad := healthyObservables()
	bad.TargetPrice = -1
	rejected, err := json.Marshal(models.Observation{Market: "XAU", Observables: bad})
	require.NoError(t, err)
	noMarket, err := json.Marshal(models.Observation{Observables: healthyObservables()})
	require.NoError(t, err)

	for name, payload := range map[string][]byte{
		"malformed": []byte("{not json"),
		"rejected":  rejected,
		"no market": noMarket,
	} {
		t.Run(name, func(t *testing.T) {
			err := h.Handle(ctx, payload)
			var perm *pkgkafka.PermanentError
			assert.True(t, errors.As(err, &perm), "want permanent error, got %v", err)
		})
	}
	assert.Equal(t, 1, m.errorCount("consumer_unmarshal"))
}

func TestObservationsHandlerTransientFailure(t *testing.T) {
	store := &memStore{saveErr: errors.New("store down")}
	h, pipe, _ := newHandlerWith(t, store, nil, mid.WithBufferSize(1))
	ctx := context.Background()

	b, err := json.Marshal(models.Observation{Market: "XAU", Observables: healthyObservables()})
	require.NoError(t, err)

	// buffered for retry: the message is done as far as the consumer goes
	require.NoError(t, h.Handle(ctx, b))
	assert.Equal(t, 1, pipe.Buffered())

	// buffer full: the consumer keeps the message and retries it
	err = h.Handle(ctx, b)
	require.Error(t, err)
	var perm *pkgkafka.PermanentError
	assert.False(t, errors.As(err, &perm))
	assert.Equal(t, 1, pipe.Buffered())
}

func TestObservationsHandlerRetriesWriteOneSnapshot(t *testing.T) {
	store, pub := &memStore{}, &memPublisher{fails: 4}
	h, pipe, _ := newHandlerWith(t, store, pub, mid.WithBufferSize(1), mid.WithRetryBackoff(time.Millisecond, 2*time.Millisecond))
	ctx := context.Background()

	b, err := json.Marshal(models.Observation{Market: "XAU", Observables: healthyObservables()})
	require.NoError(t, err)
	msgCtx, _, _, err := pkgkafka.TraceIDHook().BeforeHandle(ctx, "caesar.observations",
		kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("t-1")}}}, b)
	require.NoError(t, err)

	// the first attempt is buffered; redeliveries while the buffer is full
	// go back to the consumer
	for i := 0; i < 4; i++ {
		_ = h.Handle(msgCtx, b)
	}
	assert.Equal(t, 1, store.saved())

	pipe.Start(ctx)
	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 2*time.Second, 2*time.Millisecond)
	pipe.Stop()

	recs := store.records()
	require.Len(t, recs, 1)
	assert.Equal(t, recs[0].ID, pub.published()[0].ID)
	assert.Equal(t, observationID("t-1", b), recs[0].ID)
	assert.Zero(t, pipe.Buffered())
}
