package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/abhisek/boardprep/internal/llm"
)

type chunkEvent struct {
	Text string `json:"text"`
}

func writeSSE(w io.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// sseWriter streams events to one response.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE writes the event-stream headers. It reports false, after
// writing an error response, when w cannot stream.
func startSSE(w http.ResponseWriter) (*sseWriter, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	return &sseWriter{w: w, flusher: flusher}, true
}

func (e *sseWriter) send(event string, v any) error {
	if err := writeSSE(e.w, event, v); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

// pipe forwards every fragment of s as a "message" event. The stream is
// closed on return, which keeps whatever text the client already saw if
// it went away.
func (e *sseWriter) pipe(s *llm.Stream) error {
	defer s.Close()
	for s.Next() {
		if err := e.send("message", chunkEvent{Text: s.Text()}); err != nil {
			return err
		}
	}
	return s.Err()
}
