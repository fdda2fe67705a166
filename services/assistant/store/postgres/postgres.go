// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package postgres implements the assistant store interfaces over the
// dashboard's hosted Postgres instance via database/sql and lib/pq.
//
// All CRM tables are created and migrated by the dashboard application;
// this package only bootstraps the chat_message table it owns.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// DB wraps the shared sql.DB handle.
type DB struct {
	db *sql.DB
}

// NewDB opens a connection pool against databaseURL and verifies it.
func NewDB(ctx context.Context, databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &DB{db: db}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// EnsureSchema creates the conversation message table if it is missing.
// CRM tables are not touched here.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chat_message (
			id              BIGSERIAL PRIMARY KEY,
			session_id      TEXT        NOT NULL,
			role            TEXT        NOT NULL,
			content         TEXT        NOT NULL,
			tokens_used     INTEGER     NOT NULL DEFAULT 0,
			context_summary TEXT        NOT NULL DEFAULT '',
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chat_message_session
			ON chat_message (session_id, created_at)`,
	}
	for _, s := range stmts {
		if _, err := d.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure chat schema: %w", err)
		}
	}
	return nil
}

// Compile-time interface checks.
var (
	_ store.ConversationStore = (*DB)(nil)
	_ store.BriefingSource    = (*DB)(nil)
	_ store.ActionStore       = (*DB)(nil)
)
