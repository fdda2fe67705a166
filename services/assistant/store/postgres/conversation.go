// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package postgres

import (
	"context"
	"fmt"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// AppendMessage writes one conversation message.
func (d *DB) AppendMessage(ctx context.Context, m *store.AppendMessage) error {
	stmt := `INSERT INTO chat_message (session_id, role, content, tokens_used, context_summary)
	         VALUES ($1, $2, $3, $4, $5)`
	if _, err := d.db.ExecContext(ctx, stmt,
		m.SessionID, m.Role, m.Content, m.TokensUsed, m.ContextSummary); err != nil {
		return fmt.Errorf("append chat message: %w", err)
	}
	return nil
}

// RecentMessages returns at most limit of the most recent messages for the
// session, reordered oldest first so they can be replayed as history.
func (d *DB) RecentMessages(ctx context.Context, sessionID string, limit int) ([]store.ChatMessage, error) {
	// Inner query selects the newest window; the outer one restores
	// chronological order.
	query := `SELECT id, session_id, role, content, tokens_used, context_summary, created_at
	          FROM (
	              SELECT id, session_id, role, content, tokens_used, context_summary, created_at
	              FROM chat_message
	              WHERE session_id = $1
	              ORDER BY created_at DESC, id DESC
	              LIMIT $2
	          ) recent
	          ORDER BY created_at ASC, id ASC`
	rows, err := d.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}
	defer rows.Close()

	msgs := []store.ChatMessage{}
	for rows.Next() {
		var m store.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content,
			&m.TokensUsed, &m.ContextSummary, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
