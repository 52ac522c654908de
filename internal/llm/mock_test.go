package llm

import (
	"context"
	"errors"
	"testing"
)

func TestMockProvider_GenerateAndStreamShareQueue(t *testing.T) {
	mock := NewMockProvider(
		TextResponse("Yes"),
		MockResponse{Chunks: []string{"Calcium ", "first."}},
	)
	mock.AddResponse(TextResponse("No"))
	ctx := context.Background()

	resp, err := mock.Generate(ctx, Request{Messages: []Message{TextMessage(RoleUser, "valid?")}})
	if err != nil || resp.Text() != "Yes" {
		t.Fatalf("expected 'Yes', got %v, %v", resp, err)
	}

	s, err := mock.Stream(ctx, Request{Messages: []Message{TextMessage(RoleUser, "teach")}})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if text, err := Collect(s); err != nil || text != "Calcium first." {
		t.Fatalf("expected 'Calcium first.', got %q, %v", text, err)
	}

	resp, err = mock.Generate(ctx, Request{})
	if err != nil || resp.Text() != "No" {
		t.Fatalf("expected 'No', got %v, %v", resp, err)
	}

	if mock.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", mock.CallCount())
	}
	if mock.Pending() != 0 {
		t.Fatalf("expected queue drained, %d pending", mock.Pending())
	}
	if got := mock.Calls[1].Messages[0].Content; got != "teach" {
		t.Fatalf("expected the stream request recorded second, got %q", got)
	}
}

func TestMockProvider_StreamChunks(t *testing.T) {
	mock := NewMockProvider(
		MockResponse{Chunks: []string{"Cal", "cium"}},
		TextResponse("whole"),
		MockResponse{Chunks: []string{"half"}, StreamErr: errors.New("cut")},
	)

	s, err := mock.Stream(context.Background(), Request{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if text, _ := Collect(s); text != "Calcium" {
		t.Fatalf("expected 'Calcium', got %q", text)
	}

	s, _ = mock.Stream(context.Background(), Request{})
	if text, _ := Collect(s); text != "whole" {
		t.Fatalf("expected 'whole', got %q", text)
	}

	s, _ = mock.Stream(context.Background(), Request{})
	text, err := Collect(s)
	if err == nil || text != "half" {
		t.Fatalf("expected partial text and error, got %q, %v", text, err)
	}
}

func TestMockProvider_ErrFailsBeforeStreaming(t *testing.T) {
	mock := NewMockProvider(MockResponse{Err: &ErrRateLimit{}, Chunks: []string{"never"}})

	s, err := mock.Stream(context.Background(), Request{})
	var rl *ErrRateLimit
	if !errors.As(err, &rl) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
	if s != nil {
		t.Fatal("expected no stream when opening fails")
	}
	if mock.CallCount() != 1 {
		t.Fatalf("failed calls are still recorded, got %d", mock.CallCount())
	}
}

func TestMockProvider_EmptyQueueUnavailable(t *testing.T) {
	mock := NewMockProvider()
	var unavail *ErrProviderUnavailable

	if _, err := mock.Generate(context.Background(), Request{}); !errors.As(err, &unavail) {
		t.Fatalf("generate: expected ErrProviderUnavailable, got %T", err)
	}
	if _, err := mock.Stream(context.Background(), Request{}); !errors.As(err, &unavail) {
		t.Fatalf("stream: expected ErrProviderUnavailable, got %T", err)
	}
}

func TestMockProvider_LastCall(t *testing.T) {
	mock := NewMockProvider(TextResponse("A 4-year-old with a rash"))
	if got := mock.LastCall(); got.System != "" || got.Messages != nil {
		t.Fatalf("expected zero request before any call, got %+v", got)
	}

	png := []byte{0x89, 'P', 'N', 'G'}
	_, _ = mock.Generate(context.Background(), Request{
		System:   "Describe the image.",
		Messages: []Message{ImageMessage(RoleUser, png, "image/png")},
	})

	last := mock.LastCall()
	if last.System != "Describe the image." {
		t.Fatalf("unexpected system %q", last.System)
	}
	if img := last.Messages[0].Image; img == nil || img.MIMEType != "image/png" {
		t.Fatalf("expected the image turn recorded, got %+v", last.Messages[0])
	}
	if mock.ModelID() != "mock" {
		t.Fatalf("expected 'mock', got %q", mock.ModelID())
	}
}

func TestMockProvider_GenerateValidatesSchema(t *testing.T) {
	schema := &Schema{
		Name: "mock-generate-check",
		Definition: map[string]any{
			"type":     "object",
			"required": []any{"ok"},
			"properties": map[string]any{
				"ok": map[string]any{"type": "boolean"},
			},
		},
	}
	mock := NewMockProvider(TextResponse(`{"nope":1}`), TextResponse(`{"ok":true}`))

	_, err := mock.Generate(context.Background(), Request{Schema: schema})
	var inv *ErrInvalidResponse
	if !errors.As(err, &inv) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}

	resp, err := mock.Generate(context.Background(), Request{Schema: schema})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text() != `{"ok":true}` {
		t.Fatalf("unexpected text %q", resp.Text())
	}
	if mock.LastCall().Schema != schema {
		t.Fatal("expected last call to carry the schema")
	}
}
