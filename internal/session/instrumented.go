package session

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"twin/internal/observability"
)

type instrumentedStore struct {
	next    Store
	backend string
	metrics *observability.MetricsCollector
	tracer  *observability.TracerProvider
}

// Instrument wraps store so every load and save is traced and counted.
func Instrument(store Store, backend string, metrics *observability.MetricsCollector, tracer *observability.TracerProvider) Store {
	if store == nil {
		return nil
	}
	return &instrumentedStore{next: store, backend: backend, metrics: metrics, tracer: tracer}
}

func (s *instrumentedStore) Load(ctx context.Context, id string) ([]Turn, error) {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSessionLoad, attribute.String("twin.session.backend", s.backend))
	defer span.End()

	start := time.Now()
	turns, err := s.next.Load(ctx, id)
	s.metrics.RecordStoreOperation(ctx, "load", status(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int(observability.AttrTurns, len(turns)))
	return turns, nil
}

func (s *instrumentedStore) Save(ctx context.Context, id string, turns []Turn) error {
	ctx, span := s.tracer.StartSpan(ctx, observability.SpanSessionSave,
		attribute.String("twin.session.backend", s.backend),
		attribute.Int(observability.AttrTurns, len(turns)),
	)
	defer span.End()

	start := time.Now()
	err := s.next.Save(ctx, id, turns)
	s.metrics.RecordStoreOperation(ctx, "save", status(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
	}
	return err
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
