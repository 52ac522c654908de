package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/abhisek/boardprep/internal/llm"

// TracingProvider opens one span per LLM call. With no SDK installed the
// global tracer provider is a no-op, so this decorator costs nothing.
type TracingProvider struct {
	inner  Provider
	tracer trace.Tracer
}

// WithTracing wraps a Provider with OpenTelemetry spans.
func WithTracing(p Provider) Provider {
	return &TracingProvider{inner: p, tracer: otel.Tracer(tracerName)}
}

func (t *TracingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, span := t.start(ctx, "llm.generate", req)
	defer span.End()

	resp, err := t.inner.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
	)
	return resp, nil
}

// Stream ends its span when the stream finishes rather than when it opens.
func (t *TracingProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	ctx, span := t.start(ctx, "llm.stream", req)

	s, err := t.inner.Stream(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	s.OnFinish(func(text string, streamErr error) {
		if streamErr != nil {
			span.RecordError(streamErr)
			span.SetStatus(codes.Error, streamErr.Error())
		}
		span.SetAttributes(attribute.Int("llm.output_chars", len(text)))
		span.End()
	})
	return s, nil
}

func (t *TracingProvider) ModelID() string {
	return t.inner.ModelID()
}

func (t *TracingProvider) start(ctx context.Context, name string, req Request) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.model", t.inner.ModelID()),
		attribute.String("llm.purpose", string(PurposeFrom(ctx))),
		attribute.Int("llm.messages", len(req.Messages)),
		attribute.Bool("llm.structured", req.Schema != nil),
	))
}
