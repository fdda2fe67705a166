// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/pulso-analytics/pulso/services/assistant/actions"
	"github.com/pulso-analytics/pulso/services/assistant/briefing"
	"github.com/pulso-analytics/pulso/services/assistant/datatypes"
	"github.com/pulso-analytics/pulso/services/assistant/llm"
	"github.com/pulso-analytics/pulso/services/assistant/observability"
	"github.com/pulso-analytics/pulso/services/assistant/prompt"
	"github.com/pulso-analytics/pulso/services/assistant/sanitize"
	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// =============================================================================
// Handler
// =============================================================================

// ChatHandler runs one conversational turn over an SSE stream.
//
// # Description
//
// A turn binds and validates the request, fans out the three independent
// reads (history, base briefing, dynamic briefing), persists the user
// message, relays the upstream model stream token by token, executes any
// action commands found in the full response, persists the assistant
// message and closes with a terminal done event.
//
// # Limitations
//
//   - One upstream call per turn; there is no retry on upstream failure.
//   - If the caller disconnects mid-stream the partial turn is discarded,
//     not persisted.
type ChatHandler struct {
	conversations store.ConversationStore
	assembler     *briefing.Assembler
	executor      *actions.Executor
	client        llm.Client
	log           *slog.Logger
	historyLimit  int
}

// NewChatHandler wires a ChatHandler.
func NewChatHandler(
	conversations store.ConversationStore,
	assembler *briefing.Assembler,
	executor *actions.Executor,
	client llm.Client,
	log *slog.Logger,
	historyLimit int,
) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		assembler:     assembler,
		executor:      executor,
		client:        client,
		log:           log,
		historyLimit:  historyLimit,
	}
}

var tracer = otel.Tracer("github.com/pulso-analytics/pulso/services/assistant/handlers")

// turnInputs carries the results of the pre-stream fan-out.
type turnInputs struct {
	history []store.ChatMessage
	base    string
	dynamic string
}

// Chat handles POST /v1/assistant/chat.
func (h *ChatHandler) Chat(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	var req datatypes.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		observability.ChatRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		observability.ChatRequests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	log := h.log.With("session_id", sessionID)

	// History and the two briefing passes are independent reads; only a
	// fully failed base briefing aborts the turn.
	inputs, err := h.gatherInputs(ctx, &req, log)
	if err != nil {
		observability.ChatRequests.WithLabelValues("store_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not assemble briefing"})
		return
	}

	userMessage := sanitize.Clean(req.Message)
	if err := h.conversations.AppendMessage(ctx, &store.AppendMessage{
		SessionID:  sessionID,
		Role:       datatypes.RoleUser,
		Content:    userMessage,
		TokensUsed: estimateTokens(userMessage),
	}); err != nil {
		log.Error("could not persist user message", "error", err)
		observability.ChatRequests.WithLabelValues("store_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not persist message"})
		return
	}

	system := h.buildSystem(&req, inputs)
	messages := buildMessages(inputs.history, userMessage)

	sse, err := NewSSEWriter(c.Writer)
	if err != nil {
		log.Error("streaming unsupported", "error", err)
		observability.ChatRequests.WithLabelValues("upstream_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	observability.ActiveStreams.Inc()
	defer observability.ActiveStreams.Dec()

	ctx, span := tracer.Start(ctx, "assistant.turn")
	span.SetAttributes(attribute.String("session.id", sessionID))
	outcome := h.streamTurn(ctx, c, sse, sessionID, system, messages, &req, inputs, log)
	if outcome != "ok" && outcome != "cancelled" {
		span.SetStatus(codes.Error, outcome)
	}
	span.End()

	observability.ChatRequests.WithLabelValues(outcome).Inc()
	observability.TurnDuration.Observe(time.Since(start).Seconds())
}

// gatherInputs fans out the three pre-stream reads. A history failure
// degrades to an empty history; a base failure is a hard error.
func (h *ChatHandler) gatherInputs(ctx context.Context, req *datatypes.ChatRequest, log *slog.Logger) (*turnInputs, error) {
	inputs := &turnInputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		history, err := h.conversations.RecentMessages(gctx, req.SessionID, h.historyLimit)
		if err != nil {
			log.Warn("history fetch failed, continuing without it", "error", err)
			return nil
		}
		inputs.history = history
		return nil
	})
	g.Go(func() error {
		base, err := h.assembler.Base(gctx)
		if err != nil {
			return err
		}
		inputs.base = base
		return nil
	})
	g.Go(func() error {
		inputs.dynamic = h.assembler.Dynamic(gctx, req.Message)
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("base briefing failed", "error", err)
		return nil, err
	}
	return inputs, nil
}

// buildSystem concatenates persona, briefing sections and the optional page
// context fragment into the system prompt.
func (h *ChatHandler) buildSystem(req *datatypes.ChatRequest, inputs *turnInputs) string {
	var b strings.Builder
	b.WriteString(prompt.Build(req.UserName, req.UserRole))
	b.WriteString("\n")
	b.WriteString(inputs.base)
	if inputs.dynamic != "" {
		b.WriteString(inputs.dynamic)
	}
	if req.PageContext != nil && req.PageContext.Page != "" {
		b.WriteString("== PANTALLA ACTUAL ==\n")
		b.WriteString("Página: " + req.PageContext.Page + "\n")
		if req.PageContext.Data != nil {
			if raw, err := json.Marshal(req.PageContext.Data); err == nil {
				b.WriteString(string(raw) + "\n")
			}
		}
	}
	return sanitize.Clean(b.String())
}

// buildMessages converts history plus the new user message into the
// upstream message list, sanitizing persisted content on the way out.
func buildMessages(history []store.ChatMessage, userMessage string) []datatypes.Message {
	messages := make([]datatypes.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, datatypes.Message{
			Role:    m.Role,
			Content: sanitize.Clean(m.Content),
		})
	}
	return append(messages, datatypes.Message{
		Role:    datatypes.RoleUser,
		Content: userMessage,
	})
}

// streamTurn relays the upstream stream, executes actions and persists the
// assistant message. Returns the metric outcome label.
//
// Failures before the first delta answer with a plain JSON status; once a
// text frame has gone out the response is committed as a 200 stream and
// failures become terminal in-stream error frames.
func (h *ChatHandler) streamTurn(
	ctx context.Context,
	c *gin.Context,
	sse SSEWriter,
	sessionID, system string,
	messages []datatypes.Message,
	req *datatypes.ChatRequest,
	inputs *turnInputs,
	log *slog.Logger,
) string {
	acc, err := NewTokenAccumulator()
	if err != nil {
		log.Error("could not allocate accumulator", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return "upstream_error"
	}
	defer acc.Destroy()

	streamed := false
	err = h.client.StreamChat(ctx, system, messages, func(delta string) error {
		delta = sanitize.Clean(delta)
		if delta == "" {
			return nil
		}
		if err := acc.Write(delta); err != nil {
			return err
		}
		streamed = true
		return sse.WriteText(delta)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Caller went away; drop the partial turn.
			log.Info("turn cancelled by caller")
			return "cancelled"
		}
		log.Error("upstream stream failed", "error", err, "streamed", streamed)
		if !streamed {
			c.JSON(http.StatusBadGateway, gin.H{"error": "upstream error"})
		} else {
			_ = sse.WriteError("upstream error")
		}
		return "upstream_error"
	}
	if ctx.Err() != nil {
		log.Info("turn cancelled by caller")
		return "cancelled"
	}

	answer, err := acc.Finalize()
	if err != nil {
		log.Error("could not finalize accumulator", "error", err)
		if !streamed {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		} else {
			_ = sse.WriteError("internal error")
		}
		return "upstream_error"
	}

	answer = h.runActions(ctx, sse, answer, req, log)

	if err := h.conversations.AppendMessage(ctx, &store.AppendMessage{
		SessionID:      sessionID,
		Role:           datatypes.RoleAssistant,
		Content:        answer,
		TokensUsed:     estimateTokens(answer),
		ContextSummary: contextSummary(req.Message, inputs),
	}); err != nil {
		log.Error("could not persist assistant message", "error", err)
		_ = sse.WriteError("could not persist response")
		return "store_error"
	}

	if err := sse.WriteDone(sessionID); err != nil {
		log.Warn("could not write done event", "error", err)
	}
	return "ok"
}

// runActions extracts and executes action commands from the full answer,
// streaming one result line per command and returning the answer with the
// result lines appended.
func (h *ChatHandler) runActions(ctx context.Context, sse SSEWriter, answer string, req *datatypes.ChatRequest, log *slog.Logger) string {
	cmds := actions.Parse(answer)
	if len(cmds) == 0 {
		return answer
	}
	actor := strings.TrimSpace(req.UserName)
	if actor == "" {
		actor = "asistente"
	}
	results := h.executor.Execute(ctx, cmds, actor)
	for i, result := range results {
		observability.ActionsExecuted.WithLabelValues(cmds[i].Type, resultLabel(result)).Inc()
		line := "\n" + result
		answer += line
		if err := sse.WriteText(line); err != nil {
			log.Warn("could not stream action result", "error", err)
		}
	}
	return answer
}

func resultLabel(result string) string {
	switch {
	case strings.HasPrefix(result, "✅"):
		return "ok"
	case strings.HasPrefix(result, "⚠️"):
		return "unrecognized"
	default:
		return "error"
	}
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(s string) int {
	return len(s) / 4
}

// contextSummary records which briefing sections backed the turn. The
// sections themselves are never persisted.
func contextSummary(message string, inputs *turnInputs) string {
	topics := briefing.Topics(message)
	parts := []string{"base"}
	parts = append(parts, topics...)
	summary := strings.Join(parts, ",")
	return fmt.Sprintf("sections=%s history=%d", summary, len(inputs.history))
}
