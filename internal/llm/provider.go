package llm

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BreakerProvider wraps a Provider with a circuit breaker so a failing
// backend sheds load quickly instead of queueing requests behind timeouts.
// It performs no retries of its own.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker
	tracer  trace.Tracer
}

// WithBreaker wraps the given provider with default breaker settings.
func WithBreaker(inner Provider) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf(`{"level":"warn","message":"Circuit breaker state change","provider":"%s","from":"%s","to":"%s"}`,
				name, from, to)
		},
		// A malformed tool-call argument is a model problem, not a backend
		// outage; it must not trip the breaker.
		IsSuccessful: func(err error) bool {
			var parseErr *ArgumentParseError
			return err == nil || errors.As(err, &parseErr)
		},
	}
	return &BreakerProvider{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		tracer:  otel.Tracer("llm-provider"),
	}
}

// Name reports the wrapped provider's name.
func (b *BreakerProvider) Name() string {
	return b.inner.Name()
}

// Generate performs one model call through the breaker.
func (b *BreakerProvider) Generate(ctx context.Context, req Request) (CanonicalResponse, error) {
	ctx, span := b.tracer.Start(ctx, "llm.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.provider", b.inner.Name()),
		attribute.Int("llm.history_turns", len(req.History)),
		attribute.Int("llm.snapshot_files", len(req.Snapshot)),
	)

	result, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.Generate(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		// ArgumentParseError still carries a usable degraded response.
		if resp, ok := result.(CanonicalResponse); ok {
			return resp, err
		}
		return CanonicalResponse{}, err
	}

	resp := result.(CanonicalResponse)
	span.SetAttributes(attribute.Int("llm.actions", len(resp.Actions)))
	return resp, nil
}
