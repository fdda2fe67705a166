// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pulso-analytics/pulso/services/assistant/datatypes"
)

var tracer = otel.Tracer("github.com/pulso-analytics/pulso/services/assistant/llm")

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens    = 4096

	// scanBufSize bounds a single SSE line; deltas are small but a
	// content_block_start for a large block can exceed bufio's default.
	scanBufSize = 1024 * 1024
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
	MaxTokens int                `json:"max_tokens"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// anthropicStreamEvent is the subset of the Messages API stream events the
// relay cares about. Everything else (message_start, ping, content_block
// boundaries) is skipped by type.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// AnthropicClient streams completions from the Anthropic Messages API over
// raw HTTP.
type AnthropicClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
	log        *slog.Logger
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds a streaming client. timeout caps the whole
// upstream exchange including the read of the stream.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, log *slog.Logger) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic api key is missing")
	}
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
		log.Info("model not configured, using default", "model", model)
	}
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		log:        log,
	}, nil
}

// StreamChat implements Client.
//
// The response is read line by line under the `data: <payload>` prefix
// format. A `[DONE]` payload is ignored, unparseable payloads are dropped
// (heartbeats, control lines), and only content_block_delta/text_delta
// events produce onDelta calls. A non-2xx status is returned as an error
// before any delta is forwarded.
func (c *AnthropicClient) StreamChat(ctx context.Context, system string, messages []datatypes.Message, onDelta func(string) error) error {
	ctx, span := tracer.Start(ctx, "anthropic.stream")
	defer span.End()

	err := c.stream(ctx, system, messages, onDelta)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upstream stream failed")
	}
	return err
}

func (c *AnthropicClient) stream(ctx context.Context, system string, messages []datatypes.Message, onDelta func(string) error) error {
	msgs := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	body, err := json.Marshal(anthropicRequest{
		Model:     c.model,
		Messages:  msgs,
		System:    system,
		MaxTokens: defaultMaxTokens,
		Stream:    true,
	})
	if err != nil {
		return fmt.Errorf("marshal upstream request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Error("upstream returned non-success status",
			"status", resp.StatusCode, "body", string(snippet))
		return fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), scanBufSize)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue // event: lines, comments, blank keep-alives
		}
		if payload == "[DONE]" {
			continue
		}

		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue // malformed control line, drop without aborting
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				if err := onDelta(ev.Delta.Text); err != nil {
					return err
				}
			}
		case "error":
			if ev.Error != nil {
				return fmt.Errorf("upstream stream error: %s", ev.Error.Message)
			}
			return fmt.Errorf("upstream stream error")
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("read upstream stream: %w", err)
	}
	return nil
}
