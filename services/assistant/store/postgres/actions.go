// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// ===== Action Writes =====

// ErrNotFound is returned when an action targets a row that does not exist.
var ErrNotFound = sql.ErrNoRows

// AppendActivity logs a note, call or email against a lead and bumps the
// lead's last activity timestamp.
func (d *DB) AppendActivity(ctx context.Context, leadID, activityType, content, actor string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activity tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO lead_activities (lead_id, type, content, actor)
		 SELECT id, $2, $3, $4 FROM leads WHERE id = $1`,
		leadID, activityType, content, actor)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET last_activity_at = NOW() WHERE id = $1`, leadID); err != nil {
		return fmt.Errorf("touch lead: %w", err)
	}
	return tx.Commit()
}

// UpdateLeadStage moves a lead to a new pipeline stage. Stage validity is
// enforced by the caller; this only checks the lead exists.
func (d *DB) UpdateLeadStage(ctx context.Context, leadID, stage string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE leads
		 SET stage = $2, stage_entered_at = NOW(), last_activity_at = NOW()
		 WHERE id = $1`,
		leadID, stage)
	if err != nil {
		return fmt.Errorf("update lead stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
	}
	return nil
}

// UpdateLeadOwner reassigns a lead to another team member.
func (d *DB) UpdateLeadOwner(ctx context.Context, leadID, ownerID string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE leads SET owner_id = $2, last_activity_at = NOW() WHERE id = $1`,
		leadID, ownerID)
	if err != nil {
		return fmt.Errorf("update lead owner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lead %s: %w", leadID, ErrNotFound)
	}
	return nil
}

// CompleteTask marks a project task done, recording who closed it.
// Already-completed tasks are left untouched.
func (d *DB) CompleteTask(ctx context.Context, taskID, actor string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE project_tasks
		 SET done = TRUE, completed_at = NOW(), completed_by = $2
		 WHERE id = $1 AND done = FALSE`,
		taskID, actor)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	return nil
}
