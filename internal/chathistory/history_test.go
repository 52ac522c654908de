package chathistory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/boardprep/internal/llm"
	"github.com/abhisek/boardprep/internal/transcript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "You are a USMLE tutor."

const summaryJSON = `{"topics":["hyperkalemia"],"user_goals":["understand ECG changes"],` +
	`"assistant_responses":["explained peaked T waves"],"named_entities":["calcium gluconate"],"open_questions":[]}`

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxWords = 10
	cfg.MaxContext = 20
	cfg.SummaryThreshold = 4
	return cfg
}

func TestSendRecordsBothTurns(t *testing.T) {
	p := llm.NewMockProvider(llm.TextResponse("Peaked T waves come first."))
	h := New(p, testConfig(), nil)

	reply, err := h.Send(context.Background(), base, "What does hyperkalemia do to the ECG?")
	require.NoError(t, err)
	assert.Equal(t, "Peaked T waves come first.", reply)

	msgs := h.Transcript().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, transcript.RoleUser, msgs[0].Role)
	assert.Equal(t, transcript.RoleAssistant, msgs[1].Role)

	call := p.LastCall()
	assert.Equal(t, base, call.System)
	require.Len(t, call.Messages, 1)
	assert.Equal(t, "What does hyperkalemia do to the ECG?", call.Messages[0].Content)
}

func TestMessageTooLongFailsBeforeAnyCall(t *testing.T) {
	p := llm.NewMockProvider(llm.TextResponse("unused"))
	h := New(p, testConfig(), nil)

	_, err := h.Send(context.Background(), base, strings.Repeat("word ", 11))
	var tooLong *MessageTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, 11, tooLong.Words)
	assert.Equal(t, 10, tooLong.Limit)

	_, err = h.SendStream(context.Background(), base, strings.Repeat("word ", 11))
	assert.True(t, errors.As(err, &tooLong))

	assert.Zero(t, p.CallCount())
	assert.Zero(t, h.Transcript().Len())

	// The guard was never taken.
	_, err = h.Send(context.Background(), base, "short")
	assert.NoError(t, err)
}

func TestTranscriptTruncatedToMaxContext(t *testing.T) {
	cfg := testConfig()
	cfg.MaxContext = 3
	cfg.SummaryThreshold = 100
	p := llm.NewMockProvider(llm.TextResponse("a1"), llm.TextResponse("a2"), llm.TextResponse("a3"))
	h := New(p, cfg, nil)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2", "q3"} {
		_, err := h.Send(ctx, "", q)
		require.NoError(t, err)
	}

	// q3 is appended and truncated before the request is built.
	call := p.LastCall()
	var sent []string
	for _, m := range call.Messages {
		sent = append(sent, m.Content)
	}
	assert.Equal(t, []string{"q2", "a2", "q3"}, sent)

	var kept []string
	for _, m := range h.Transcript().Messages() {
		kept = append(kept, m.Content)
	}
	assert.Equal(t, []string{"q2", "a2", "q3", "a3"}, kept)
}

// Once a summary exists, later prompts carry it ahead of the recent turns.
func TestSummaryFoldedIntoLaterPrompts(t *testing.T) {
	p := llm.NewMockProvider(
		llm.TextResponse("a1"),
		llm.TextResponse("a2"),
		llm.TextResponse("a3"),
		llm.TextResponse(summaryJSON),
		llm.TextResponse("a4"),
	)
	h := New(p, testConfig(), nil)
	ctx := context.Background()

	for _, q := range []string{"q1", "q2"} {
		_, err := h.Send(ctx, base, q)
		require.NoError(t, err)
	}
	h.Wait()
	assert.Nil(t, h.Summary(), "four messages do not exceed the threshold")

	_, err := h.Send(ctx, base, "q3")
	require.NoError(t, err)
	h.Wait()

	sum := h.Summary()
	require.NotNil(t, sum)
	assert.Equal(t, []string{"hyperkalemia"}, sum.Topics)
	assert.Equal(t, []string{"calcium gluconate"}, sum.NamedEntities)

	summaryCall := p.Calls[3]
	assert.Equal(t, SummarySchema, summaryCall.Schema)
	assert.Contains(t, summaryCall.Messages[0].Content, "user: q1")
	assert.Contains(t, summaryCall.Messages[0].Content, "assistant: a3")

	_, err = h.Send(ctx, base, "q4")
	require.NoError(t, err)

	call := p.LastCall()
	assert.Equal(t, base, call.System)
	require.Len(t, call.Messages, 2, "summary plus the unsummarized tail")
	assert.True(t, strings.HasPrefix(call.Messages[0].Content, summaryPreamble))
	assert.Contains(t, call.Messages[0].Content, "hyperkalemia")
	assert.Equal(t, "q4", call.Messages[1].Content)

	// The full transcript is still retained.
	assert.Equal(t, 8, h.Transcript().Len())
}

func TestBadSummaryKeepsPrevious(t *testing.T) {
	cfg := testConfig()
	cfg.SummaryThreshold = 1
	p := llm.NewMockProvider(
		llm.TextResponse("a1"),
		llm.TextResponse(summaryJSON),
		llm.TextResponse("a2"),
		llm.TextResponse("this is not json"),
		llm.TextResponse("a3"),
	)
	h := New(p, cfg, nil)
	ctx := context.Background()

	_, err := h.Send(ctx, base, "q1")
	require.NoError(t, err)
	h.Wait()
	first := h.Summary()
	require.NotNil(t, first)

	_, err = h.Send(ctx, base, "q2")
	require.NoError(t, err)
	h.Wait()
	assert.Same(t, first, h.Summary())

	// Messages from the failed attempt are still unsummarized.
	_, err = h.Send(ctx, base, "q3")
	require.NoError(t, err)
	var sent []string
	for _, m := range p.LastCall().Messages[1:] {
		sent = append(sent, m.Content)
	}
	assert.Equal(t, []string{"q2", "a2", "q3"}, sent)
	h.Wait()
}

func TestSendIsSingleFlight(t *testing.T) {
	p := llm.NewMockProvider(
		llm.MockResponse{Chunks: []string{"Cal", "cium"}},
		llm.TextResponse("ok"),
	)
	h := New(p, testConfig(), nil)
	ctx := context.Background()

	s, err := h.SendStream(ctx, base, "first")
	require.NoError(t, err)

	_, err = h.Send(ctx, base, "second")
	assert.ErrorIs(t, err, ErrBusy)
	_, err = h.SendStream(ctx, base, "second")
	assert.ErrorIs(t, err, ErrBusy)

	text, err := llm.Collect(s)
	require.NoError(t, err)
	assert.Equal(t, "Calcium", text)

	_, err = h.Send(ctx, base, "second")
	assert.NoError(t, err)
	assert.Equal(t, 4, h.Transcript().Len())
}

func TestClosedStreamRecordsPartialReply(t *testing.T) {
	p := llm.NewMockProvider(llm.MockResponse{Chunks: []string{"Peaked ", "T ", "waves"}})
	h := New(p, testConfig(), nil)

	s, err := h.SendStream(context.Background(), base, "ECG?")
	require.NoError(t, err)
	require.True(t, s.Next())
	require.True(t, s.Next())
	require.NoError(t, s.Close())

	msgs := h.Transcript().Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Peaked T ", msgs[1].Content)
}

func TestFailedReplyReleasesGuard(t *testing.T) {
	p := llm.NewMockProvider(
		llm.MockResponse{Err: &llm.ErrProviderUnavailable{}},
		llm.TextResponse("ok"),
	)
	h := New(p, testConfig(), nil)
	ctx := context.Background()

	_, err := h.Send(ctx, base, "q1")
	var unavailable *llm.ErrProviderUnavailable
	assert.True(t, errors.As(err, &unavailable))

	reply, err := h.Send(ctx, base, "q1 again")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestSummaryString(t *testing.T) {
	s := &Summary{Topics: []string{"hyperkalemia"}, OpenQuestions: []string{"why not dialysis first?"}}
	assert.Equal(t, "Topics:\n- hyperkalemia\nOpen questions:\n- why not dialysis first?", s.String())
}
