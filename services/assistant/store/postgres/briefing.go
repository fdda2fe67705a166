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
	"time"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// ===== Briefing Reads =====
//
// Every query below is bounded by a row limit, a date window, or both.
// Column names follow the dashboard's migrations.

// ActiveLeads returns non-terminal leads, most recently active first.
func (d *DB) ActiveLeads(ctx context.Context, limit int) ([]store.Lead, error) {
	query := `SELECT id, name, company, stage, channel, owner_id, monthly_value,
	                 created_at, stage_entered_at, last_activity_at
	          FROM leads
	          WHERE stage NOT IN ($1, $2)
	          ORDER BY last_activity_at DESC
	          LIMIT $3`
	rows, err := d.db.QueryContext(ctx, query, store.StageGanado, store.StagePerdido, limit)
	if err != nil {
		return nil, fmt.Errorf("active leads: %w", err)
	}
	return scanLeads(rows)
}

// LeadsCreatedSince returns leads created on or after since, newest first.
func (d *DB) LeadsCreatedSince(ctx context.Context, since time.Time, limit int) ([]store.Lead, error) {
	query := `SELECT id, name, company, stage, channel, owner_id, monthly_value,
	                 created_at, stage_entered_at, last_activity_at
	          FROM leads
	          WHERE created_at >= $1
	          ORDER BY created_at DESC
	          LIMIT $2`
	rows, err := d.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("leads created since: %w", err)
	}
	return scanLeads(rows)
}

func scanLeads(rows *sql.Rows) ([]store.Lead, error) {
	defer rows.Close()
	leads := []store.Lead{}
	for rows.Next() {
		var l store.Lead
		if err := rows.Scan(&l.ID, &l.Name, &l.Company, &l.Stage, &l.Channel,
			&l.OwnerID, &l.MonthlyValue, &l.CreatedAt, &l.StageEnteredAt,
			&l.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// RecentClients returns the newest client accounts.
func (d *DB) RecentClients(ctx context.Context, limit int) ([]store.Client, error) {
	query := `SELECT id, name, company, monthly_revenue, active, created_at
	          FROM clients
	          ORDER BY created_at DESC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent clients: %w", err)
	}
	defer rows.Close()
	clients := []store.Client{}
	for rows.Next() {
		var c store.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Company, &c.MonthlyRevenue,
			&c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// RecentProjects returns the most recently updated tech projects.
func (d *DB) RecentProjects(ctx context.Context, limit int) ([]store.Project, error) {
	query := `SELECT id, name, client_name, commercial_stage, execution_stage,
	                 monthly_revenue, created_at, updated_at
	          FROM projects
	          ORDER BY updated_at DESC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent projects: %w", err)
	}
	defer rows.Close()
	projects := []store.Project{}
	for rows.Next() {
		var p store.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.ClientName, &p.CommercialStage,
			&p.ExecutionStage, &p.MonthlyRevenue, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// OpenTasks returns pending project tasks, earliest due date first.
// Tasks without a due date sort last.
func (d *DB) OpenTasks(ctx context.Context, limit int) ([]store.ProjectTask, error) {
	query := `SELECT id, project_id, title, done, due_at, completed_at, completed_by
	          FROM project_tasks
	          WHERE done = FALSE
	          ORDER BY due_at ASC NULLS LAST
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("open tasks: %w", err)
	}
	defer rows.Close()
	tasks := []store.ProjectTask{}
	for rows.Next() {
		var t store.ProjectTask
		var completedBy sql.NullString
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Title, &t.Done,
			&t.DueAt, &t.CompletedAt, &completedBy); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.CompletedBy = completedBy.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// RecentInvoices returns the newest invoices regardless of status.
func (d *DB) RecentInvoices(ctx context.Context, limit int) ([]store.Invoice, error) {
	query := `SELECT id, client_name, amount, status, issued_at, due_at
	          FROM invoices
	          ORDER BY issued_at DESC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent invoices: %w", err)
	}
	defer rows.Close()
	invoices := []store.Invoice{}
	for rows.Next() {
		var inv store.Invoice
		if err := rows.Scan(&inv.ID, &inv.ClientName, &inv.Amount, &inv.Status,
			&inv.IssuedAt, &inv.DueAt); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// TransactionsBetween returns transactions in [from, to), newest first.
func (d *DB) TransactionsBetween(ctx context.Context, from, to time.Time, limit int) ([]store.Transaction, error) {
	query := `SELECT id, kind, category, amount, occurred_at
	          FROM transactions
	          WHERE occurred_at >= $1 AND occurred_at < $2
	          ORDER BY occurred_at DESC
	          LIMIT $3`
	rows, err := d.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("transactions between: %w", err)
	}
	defer rows.Close()
	txs := []store.Transaction{}
	for rows.Next() {
		var t store.Transaction
		if err := rows.Scan(&t.ID, &t.Kind, &t.Category, &t.Amount, &t.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// RecentActivities returns the newest lead activities.
func (d *DB) RecentActivities(ctx context.Context, limit int) ([]store.Activity, error) {
	query := `SELECT id, lead_id, type, content, actor, created_at
	          FROM lead_activities
	          ORDER BY created_at DESC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	defer rows.Close()
	acts := []store.Activity{}
	for rows.Next() {
		var a store.Activity
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.Content, &a.Actor,
			&a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}

// CallsBetween returns calls scheduled in [from, to), soonest first.
func (d *DB) CallsBetween(ctx context.Context, from, to time.Time, limit int) ([]store.Call, error) {
	query := `SELECT id, lead_name, scheduled_at, completed, COALESCE(outcome, '')
	          FROM calls
	          WHERE scheduled_at >= $1 AND scheduled_at < $2
	          ORDER BY scheduled_at ASC
	          LIMIT $3`
	rows, err := d.db.QueryContext(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("calls between: %w", err)
	}
	defer rows.Close()
	calls := []store.Call{}
	for rows.Next() {
		var c store.Call
		if err := rows.Scan(&c.ID, &c.LeadName, &c.ScheduledAt, &c.Completed,
			&c.Outcome); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// OpenProposals returns draft and sent proposals, newest first.
func (d *DB) OpenProposals(ctx context.Context, limit int) ([]store.Proposal, error) {
	query := `SELECT id, lead_name, status, amount, sent_at
	          FROM proposals
	          WHERE status IN ($1, $2)
	          ORDER BY sent_at DESC
	          LIMIT $3`
	rows, err := d.db.QueryContext(ctx, query, store.ProposalDraft, store.ProposalSent, limit)
	if err != nil {
		return nil, fmt.Errorf("open proposals: %w", err)
	}
	defer rows.Close()
	props := []store.Proposal{}
	for rows.Next() {
		var p store.Proposal
		if err := rows.Scan(&p.ID, &p.LeadName, &p.Status, &p.Amount, &p.SentAt); err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// UpcomingWebinars returns webinars scheduled from now on, soonest first.
func (d *DB) UpcomingWebinars(ctx context.Context, limit int) ([]store.Webinar, error) {
	query := `SELECT id, title, scheduled_at, registered, attended
	          FROM webinars
	          WHERE scheduled_at >= NOW()
	          ORDER BY scheduled_at ASC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("upcoming webinars: %w", err)
	}
	defer rows.Close()
	webinars := []store.Webinar{}
	for rows.Next() {
		var w store.Webinar
		if err := rows.Scan(&w.ID, &w.Title, &w.ScheduledAt, &w.Registered,
			&w.Attended); err != nil {
			return nil, fmt.Errorf("scan webinar: %w", err)
		}
		webinars = append(webinars, w)
	}
	return webinars, rows.Err()
}

// RecentSocialPosts returns the newest social posts by scheduled date.
func (d *DB) RecentSocialPosts(ctx context.Context, limit int) ([]store.SocialPost, error) {
	query := `SELECT id, platform, content, status, scheduled_at
	          FROM social_posts
	          ORDER BY scheduled_at DESC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent social posts: %w", err)
	}
	defer rows.Close()
	posts := []store.SocialPost{}
	for rows.Next() {
		var p store.SocialPost
		if err := rows.Scan(&p.ID, &p.Platform, &p.Content, &p.Status,
			&p.ScheduledAt); err != nil {
			return nil, fmt.Errorf("scan social post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// TeamMembers returns dashboard users, alphabetically.
func (d *DB) TeamMembers(ctx context.Context, limit int) ([]store.TeamMember, error) {
	query := `SELECT id, name, role
	          FROM team_members
	          ORDER BY name ASC
	          LIMIT $1`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("team members: %w", err)
	}
	defer rows.Close()
	members := []store.TeamMember{}
	for rows.Next() {
		var m store.TeamMember
		if err := rows.Scan(&m.ID, &m.Name, &m.Role); err != nil {
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// SearchCompanies finds leads and clients whose name or company contains
// name, case-insensitively.
func (d *DB) SearchCompanies(ctx context.Context, name string, limit int) ([]store.CompanyMatch, error) {
	pattern := "%" + name + "%"
	query := `SELECT 'lead' AS kind, name, company, stage, monthly_value
	          FROM leads
	          WHERE name ILIKE $1 OR company ILIKE $1
	          UNION ALL
	          SELECT 'client' AS kind, name, company, '' AS stage, monthly_revenue
	          FROM clients
	          WHERE name ILIKE $1 OR company ILIKE $1
	          LIMIT $2`
	rows, err := d.db.QueryContext(ctx, query, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search companies: %w", err)
	}
	defer rows.Close()
	matches := []store.CompanyMatch{}
	for rows.Next() {
		var m store.CompanyMatch
		if err := rows.Scan(&m.Kind, &m.Name, &m.Company, &m.Stage,
			&m.MonthlyValue); err != nil {
			return nil, fmt.Errorf("scan company match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
