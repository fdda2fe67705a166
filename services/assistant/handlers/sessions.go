// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pulso-analytics/pulso/services/assistant/actions"
	"github.com/pulso-analytics/pulso/services/assistant/store"
)

const maxHistoryPageSize = 200

// SessionHandler serves read access to persisted conversations.
type SessionHandler struct {
	conversations store.ConversationStore
	log           *slog.Logger
}

// NewSessionHandler wires a SessionHandler.
func NewSessionHandler(conversations store.ConversationStore, log *slog.Logger) *SessionHandler {
	return &SessionHandler{conversations: conversations, log: log}
}

type historyMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// History handles GET /v1/sessions/:sessionId/history. An unknown session
// returns an empty list, not a 404; the dashboard opens sessions lazily.
func (h *SessionHandler) History(c *gin.Context) {
	sessionID := c.Param("sessionId")
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryPageSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	msgs, err := h.conversations.RecentMessages(c.Request.Context(), sessionID, limit)
	if err != nil {
		h.log.Error("could not load session history", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}

	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		// Raw action blocks stay out of replayed history; the result
		// lines persisted next to them already tell the story.
		out = append(out, historyMessage{
			Role:      m.Role,
			Content:   actions.Strip(m.Content),
			CreatedAt: m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "messages": out})
}

// Health handles GET /health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
