package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/boardprep/internal/logger"
	"github.com/abhisek/boardprep/internal/store"
)

// LoggingProvider is a decorator that records every LLM request as an event.
type LoggingProvider struct {
	inner     Provider
	eventRepo store.EventRepo
	log       *logger.Logger
}

// WithLogging wraps a Provider with event logging.
func WithLogging(p Provider, repo store.EventRepo, log *logger.Logger) Provider {
	return &LoggingProvider{inner: p, eventRepo: repo, log: logger.OrNop(log)}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	data := l.eventData(ctx, req, start, err)
	if resp != nil {
		data.InputTokens = resp.Usage.InputTokens
		data.OutputTokens = resp.Usage.OutputTokens
		data.Model = resp.Model
		data.ResponseBody = string(resp.Content)
	}
	l.append(ctx, data)

	return resp, err
}

// Stream logs once the returned stream finishes, fails, or is closed.
// Token counts are not reported by every provider for streams, so only
// the request and the accumulated output are recorded.
func (l *LoggingProvider) Stream(ctx context.Context, req Request) (*Stream, error) {
	start := time.Now()

	s, err := l.inner.Stream(ctx, req)
	if err != nil {
		l.append(ctx, l.eventData(ctx, req, start, err))
		return nil, err
	}

	s.OnFinish(func(text string, streamErr error) {
		data := l.eventData(ctx, req, start, streamErr)
		data.ResponseBody = text
		l.append(context.WithoutCancel(ctx), data)
	})
	return s, nil
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}

func (l *LoggingProvider) eventData(ctx context.Context, req Request, start time.Time, err error) store.LLMRequestEventData {
	data := store.LLMRequestEventData{
		Provider:    l.inner.ModelID(),
		Model:       l.inner.ModelID(),
		Purpose:     string(PurposeFrom(ctx)),
		LatencyMs:   time.Since(start).Milliseconds(),
		Success:     err == nil,
		RequestBody: serializeRequest(req),
	}
	if err != nil {
		data.ErrorMessage = err.Error()
	}
	return data
}

// append logs the event but never fails the request.
func (l *LoggingProvider) append(ctx context.Context, data store.LLMRequestEventData) {
	if logErr := l.eventRepo.AppendLLMRequest(ctx, data); logErr != nil {
		l.log.Warn("failed to log LLM request event", "purpose", data.Purpose, "error", logErr)
	}
}

// serializeRequest builds a readable representation of the LLM request.
func serializeRequest(req Request) string {
	var b strings.Builder

	if req.System != "" {
		b.WriteString("[system]\n")
		b.WriteString(req.System)
		b.WriteString("\n\n")
	}

	for _, m := range req.Messages {
		b.WriteString(fmt.Sprintf("[%s]\n", m.Role))
		if m.Image != nil {
			b.WriteString(fmt.Sprintf("<image %s, %d bytes>\n", m.Image.MIMEType, len(m.Image.Data)))
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}

	if req.Schema != nil {
		schemaDef, err := json.Marshal(req.Schema.Definition)
		if err == nil {
			b.WriteString(fmt.Sprintf("[schema: %s]\n", req.Schema.Name))
			b.WriteString(string(schemaDef))
			b.WriteString("\n")
		}
	}

	return b.String()
}
