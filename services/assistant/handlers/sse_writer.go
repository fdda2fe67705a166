// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pulso-analytics/pulso/services/assistant/datatypes"
)

// =============================================================================
// Interface Definition
// =============================================================================

// SSEWriter writes the outbound response stream.
//
// # Description
//
// The dashboard consumes a data-only stream: every frame is
// `data: <json>\n\n` with no event-type line. Intermediate frames carry
// text, the terminal frame carries done plus the session id, and error
// frames end the stream early.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use; deltas and action
// results may be written from different goroutines.
type SSEWriter interface {
	// WriteText writes one incremental text frame and flushes.
	WriteText(text string) error

	// WriteError writes a terminal error frame and flushes.
	WriteError(message string) error

	// WriteDone writes the terminal done frame carrying the session id.
	// Always the last frame on a successful turn.
	WriteDone(sessionID string) error
}

// =============================================================================
// HTTP Implementation
// =============================================================================

type httpSSEWriter struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

var _ SSEWriter = (*httpSSEWriter)(nil)

// NewSSEWriter wraps w for SSE output. Returns an error if w cannot flush,
// which would silently buffer the whole stream.
//
// Headers are not touched until the first frame is written, so failures
// detected before any streaming can still answer with a plain status code.
func NewSSEWriter(w http.ResponseWriter) (SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support flushing")
	}
	return &httpSSEWriter{w: w, flusher: flusher}, nil
}

// SetSSEHeaders sets the response headers for an SSE stream. Called by the
// writer right before its first frame commits the response.
func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

func (s *httpSSEWriter) WriteText(text string) error {
	return s.write(datatypes.StreamEvent{Text: text})
}

func (s *httpSSEWriter) WriteError(message string) error {
	return s.write(datatypes.StreamEvent{Error: message})
}

func (s *httpSSEWriter) WriteDone(sessionID string) error {
	return s.write(datatypes.StreamEvent{Done: true, SessionID: sessionID})
}

func (s *httpSSEWriter) write(ev datatypes.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		SetSSEHeaders(s.w)
		s.started = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}
