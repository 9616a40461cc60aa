package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"CaesarEcon/internal/domain/econ"
	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
	mid "CaesarEcon/internal/middleware"
	pkgkafka "CaesarEcon/pkg/kafka"
	applogger "CaesarEcon/pkg/logger"

	"github.com/google/uuid"
)

// observationNamespace seeds name-based IDs for observations that arrive
// without one.
var observationNamespace = uuid.MustParse("4f3c2a8e-6d1b-5e7a-9c40-2b8d1e6f0a53")

// ObservationsHandler consumes market readings from Kafka and feeds them to
// the observation pipeline.
type ObservationsHandler struct {
	topic   string
	pipe    *mid.ObservationPipeline
	metrics drepo.Metrics
	l       *applogger.Logger
}

func NewObservationsHandler(topic string, pipe *mid.ObservationPipeline, metrics drepo.Metrics, l *applogger.Logger) *ObservationsHandler {
	return &ObservationsHandler{topic: topic, pipe: pipe, metrics: metrics, l: l}
}

func (h *ObservationsHandler) Topic() string { return h.topic }

// Handle decodes one observation. Malformed payloads and readings the engine
// rejects are permanent so the consumer sends them to the DLQ without retry.
func (h *ObservationsHandler) Handle(ctx context.Context, b []byte) error {
	var obs models.Observation
	if err := json.Unmarshal(b, &obs); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode observation: %w", err))
	}
	if obs.ObservedAt > 0 {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(obs.ObservedAt)).Seconds())
	}
	if obs.TraceID == "" {
		obs.TraceID = pkgkafka.TraceID(ctx)
	}
	if obs.ID == "" {
		obs.ID = observationID(obs.TraceID, b)
	}

	err := h.pipe.Process(ctx, &obs)
	if err == nil {
		return nil
	}
	if isPermanent(err) {
		h.l.Warn("observation rejected",
			applogger.String("market", obs.Market),
			applogger.String("trace_id", obs.TraceID),
			applogger.Error(err))
		return pkgkafka.Permanent(err)
	}
	return err
}

// observationID names a message by its trace id and payload, so a
// redelivered message maps to the same snapshot record.
func observationID(traceID string, payload []byte) string {
	name := make([]byte, 0, len(traceID)+1+len(payload))
	name = append(name, traceID...)
	name = append(name, 0)
	name = append(name, payload...)
	return uuid.NewSHA1(observationNamespace, name).String()
}

func isPermanent(err error) bool {
	return errors.Is(err, mid.ErrInvalidObservation) ||
		errors.Is(err, econ.ErrInvalidInput) ||
		errors.Is(err, econ.ErrNonFiniteResult)
}

var _ pkgkafka.MessageHandler = (*ObservationsHandler)(nil)
