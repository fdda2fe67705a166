// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSSEWriter_DataOnlyFraming(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	if err != nil {
		t.Fatalf("NewSSEWriter: %v", err)
	}
	if got := w.Header().Get("Content-Type"); got != "" {
		t.Errorf("headers must not be set before the first frame, got %q", got)
	}

	if err := sse.WriteText("hola"); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("first frame must set the stream headers, got %q", got)
	}
	if err := sse.WriteDone("s-1"); err != nil {
		t.Fatalf("WriteDone: %v", err)
	}

	want := "data: {\"text\":\"hola\"}\n\n" +
		"data: {\"done\":true,\"sessionId\":\"s-1\"}\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("stream body:\n%q\nwant:\n%q", got, want)
	}
}

func TestSSEWriter_ErrorFrame(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	sse, _ := NewSSEWriter(w)
	if err := sse.WriteError("upstream error"); err != nil {
		t.Fatalf("WriteError: %v", err)
	}
	if got := w.Body.String(); got != "data: {\"error\":\"upstream error\"}\n\n" {
		t.Errorf("error frame: %q", got)
	}
}

// plainWriter is a ResponseWriter without Flusher support.
type plainWriter struct{ http.ResponseWriter }

func TestNewSSEWriter_RequiresFlusher(t *testing.T) {
	t.Parallel()

	if _, err := NewSSEWriter(plainWriter{}); err == nil {
		t.Fatal("expected error for non-flushable writer")
	}
}

func TestSetSSEHeaders(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	SetSSEHeaders(w)
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	if got := w.Header().Get("X-Accel-Buffering"); got != "no" {
		t.Errorf("buffering header = %q", got)
	}
}
