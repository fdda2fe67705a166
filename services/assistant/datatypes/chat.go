// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides request, response and event types for the
// assistant service.
package datatypes

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxMessageContentBytes is the maximum size of the inbound user message.
	// Byte length, not rune count, to bound memory regardless of encoding.
	MaxMessageContentBytes = 32 * 1024 // 32KB

	// RoleUser and RoleAssistant are the only roles persisted per turn.
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// chatValidate is the validator instance for chat datatypes.
var chatValidate *validator.Validate

func init() {
	chatValidate = validator.New()
	_ = chatValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces MaxMessageContentBytes on string fields.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= MaxMessageContentBytes
}

// =============================================================================
// Request Types
// =============================================================================

// PageContext is an optional fragment describing the dashboard page the
// caller is looking at. Data is forwarded verbatim into the briefing so
// the model can reference what is on screen.
type PageContext struct {
	Page string `json:"page"`
	Data any    `json:"data,omitempty"`
}

// ChatRequest is the inbound body for POST /v1/assistant/chat.
//
// Message is the only required field. SessionId continues an existing
// conversation; when empty the handler generates a fresh session id and
// returns it in the terminal done event. UserName and UserRole feed the
// persona block of the system prompt.
type ChatRequest struct {
	Message     string       `json:"message" validate:"required,maxbytes"`
	SessionID   string       `json:"sessionId"`
	PageContext *PageContext `json:"pageContext,omitempty"`
	UserName    string       `json:"userName"`
	UserRole    string       `json:"userRole"`
}

// Validate checks the request against its validation tags.
func (r *ChatRequest) Validate() error {
	if err := chatValidate.Struct(r); err != nil {
		return fmt.Errorf("invalid chat request: %w", err)
	}
	return nil
}

// Message is one turn of conversation as sent to the upstream provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// =============================================================================
// Outbound Stream Events
// =============================================================================

// StreamEvent is a single frame of the outbound response stream.
//
// The wire format is line-framed SSE data (`data: <json>\n\n`) with no
// event-type prefix; the dashboard's EventSource shim switches on the
// fields present. Intermediate frames carry Text; the terminal frame
// carries Done plus the SessionID; Error frames end the stream early.
type StreamEvent struct {
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Done      bool   `json:"done,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}
