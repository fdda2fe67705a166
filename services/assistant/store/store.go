// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store defines the entity types and store interfaces the assistant
// consumes. The schema itself is owned by the dashboard's migrations; the
// assistant only reads CRM data in bulk and writes conversation messages,
// lead activities and task completions.
//
// Interfaces are scoped per consumer (conversation persistence, briefing
// reads, action writes) so tests can fake exactly what they exercise.
// The production implementation backed by Postgres lives in store/postgres.
package store

import (
	"context"
	"time"
)

// =============================================================================
// Pipeline Stages
// =============================================================================

// Pipeline stages for leads and the commercial stage of projects.
// GANADO and PERDIDO are terminal.
const (
	StageNuevo       = "NUEVO"
	StageContactado  = "CONTACTADO"
	StageReunion     = "REUNION"
	StagePropuesta   = "PROPUESTA"
	StageNegociacion = "NEGOCIACION"
	StageGanado      = "GANADO"
	StagePerdido     = "PERDIDO"
)

// Stages lists every valid pipeline stage, in funnel order.
var Stages = []string{
	StageNuevo,
	StageContactado,
	StageReunion,
	StagePropuesta,
	StageNegociacion,
	StageGanado,
	StagePerdido,
}

// ValidStage reports whether s is a member of the stage enumeration.
func ValidStage(s string) bool {
	for _, stage := range Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// TerminalStage reports whether s ends the pipeline (won or lost).
func TerminalStage(s string) bool {
	return s == StageGanado || s == StagePerdido
}

// =============================================================================
// Entities
// =============================================================================

// Lead is a sales opportunity in the pipeline.
type Lead struct {
	ID             string
	Name           string
	Company        string
	Stage          string
	Channel        string
	OwnerID        string
	MonthlyValue   float64
	CreatedAt      time.Time
	StageEnteredAt time.Time
	LastActivityAt time.Time
}

// Client is a won account with recurring revenue.
type Client struct {
	ID             string
	Name           string
	Company        string
	MonthlyRevenue float64
	Active         bool
	CreatedAt      time.Time
}

// Project tracks a tech delivery: a commercial stage (same enum as leads)
// plus an execution stage once won.
type Project struct {
	ID              string
	Name            string
	ClientName      string
	CommercialStage string
	ExecutionStage  string
	MonthlyRevenue  float64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProjectTask is a unit of work inside a project.
type ProjectTask struct {
	ID          string
	ProjectID   string
	Title       string
	Done        bool
	DueAt       *time.Time
	CompletedAt *time.Time
	CompletedBy string
}

// Invoice statuses as stored by the finance module.
const (
	InvoicePaid    = "PAID"
	InvoicePending = "PENDING"
	InvoiceOverdue = "OVERDUE"
)

// Invoice is a billing document issued to a client.
type Invoice struct {
	ID         string
	ClientName string
	Amount     float64
	Status     string
	IssuedAt   time.Time
	DueAt      time.Time
}

// Transaction kinds.
const (
	TxIncome  = "income"
	TxExpense = "expense"
)

// Transaction is a single income or expense entry.
type Transaction struct {
	ID         string
	Kind       string
	Category   string
	Amount     float64
	OccurredAt time.Time
}

// Activity is a log entry attached to a lead (note, call, email, ...).
type Activity struct {
	ID        string
	LeadID    string
	Type      string
	Content   string
	Actor     string
	CreatedAt time.Time
}

// Call is a scheduled sales call.
type Call struct {
	ID          string
	LeadName    string
	ScheduledAt time.Time
	Completed   bool
	Outcome     string
}

// Proposal statuses. ENVIADA and BORRADOR are open; the rest are terminal.
const (
	ProposalDraft    = "BORRADOR"
	ProposalSent     = "ENVIADA"
	ProposalAccepted = "ACEPTADA"
	ProposalRejected = "RECHAZADA"
)

// Proposal is a commercial offer sent to a lead.
type Proposal struct {
	ID       string
	LeadName string
	Status   string
	Amount   float64
	SentAt   time.Time
}

// Webinar is a marketing event with registration counts.
type Webinar struct {
	ID          string
	Title       string
	ScheduledAt time.Time
	Registered  int
	Attended    int
}

// SocialPost is a scheduled or published marketing post.
type SocialPost struct {
	ID          string
	Platform    string
	Content     string
	Status      string
	ScheduledAt time.Time
}

// TeamMember is a dashboard user.
type TeamMember struct {
	ID   string
	Name string
	Role string
}

// CompanyMatch is a hit from the free-text company search, drawn from
// either the lead or the client collection.
type CompanyMatch struct {
	Kind         string // "lead" | "client"
	Name         string
	Company      string
	Stage        string
	MonthlyValue float64
}

// ChatMessage is one persisted conversation message. Immutable once
// written; ordered within a session by CreatedAt.
type ChatMessage struct {
	ID             int64
	SessionID      string
	Role           string
	Content        string
	TokensUsed     int
	ContextSummary string
	CreatedAt      time.Time
}

// AppendMessage carries the fields for a new conversation message.
type AppendMessage struct {
	SessionID      string
	Role           string
	Content        string
	TokensUsed     int
	ContextSummary string
}

// =============================================================================
// Store Interfaces
// =============================================================================

// ConversationStore persists and replays conversation messages.
type ConversationStore interface {
	// AppendMessage writes one message. A failure propagates to the
	// caller; the turn decides whether to abort.
	AppendMessage(ctx context.Context, m *AppendMessage) error

	// RecentMessages returns at most limit of the most recent messages
	// for the session, oldest first. Empty slice for an unknown session.
	RecentMessages(ctx context.Context, sessionID string, limit int) ([]ChatMessage, error)
}

// BriefingSource provides the bounded bulk reads the context assembler
// groups in memory. Every method caps its result set (row limit or date
// window); no read may iterate a table unbounded.
type BriefingSource interface {
	ActiveLeads(ctx context.Context, limit int) ([]Lead, error)
	LeadsCreatedSince(ctx context.Context, since time.Time, limit int) ([]Lead, error)
	RecentClients(ctx context.Context, limit int) ([]Client, error)
	RecentProjects(ctx context.Context, limit int) ([]Project, error)
	OpenTasks(ctx context.Context, limit int) ([]ProjectTask, error)
	RecentInvoices(ctx context.Context, limit int) ([]Invoice, error)
	TransactionsBetween(ctx context.Context, from, to time.Time, limit int) ([]Transaction, error)
	RecentActivities(ctx context.Context, limit int) ([]Activity, error)
	CallsBetween(ctx context.Context, from, to time.Time, limit int) ([]Call, error)
	OpenProposals(ctx context.Context, limit int) ([]Proposal, error)
	UpcomingWebinars(ctx context.Context, limit int) ([]Webinar, error)
	RecentSocialPosts(ctx context.Context, limit int) ([]SocialPost, error)
	TeamMembers(ctx context.Context, limit int) ([]TeamMember, error)
	SearchCompanies(ctx context.Context, name string, limit int) ([]CompanyMatch, error)
}

// ActionStore performs the side effects requested by action commands
// embedded in generated text.
type ActionStore interface {
	AppendActivity(ctx context.Context, leadID, activityType, content, actor string) error
	UpdateLeadStage(ctx context.Context, leadID, stage string) error
	UpdateLeadOwner(ctx context.Context, leadID, ownerID string) error
	CompleteTask(ctx context.Context, taskID, actor string) error
}
