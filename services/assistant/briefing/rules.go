// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package briefing

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// Record caps for dynamic sections.
const (
	dynLeadCap     = 20
	dynClientCap   = 15
	dynProjectCap  = 15
	dynInvoiceCap  = 15
	dynSocialCap   = 10
	dynWebinarCap  = 10
	dynCallCap     = 15
	dynProposalCap = 15
	dynTeamCap     = 20
	dynTaskCap     = 20
	dynCompanyCap  = 10
)

// rule is one entry of the dynamic dispatch table: a topic, the keywords
// that fire it, and the renderer that fetches and formats its section.
//
// Rules are evaluated in table order and each rule only ever consults its
// own keyword set, so firing one topic can never suppress another.
type rule struct {
	topic    string
	keywords []string
	render   func(a *Assembler, ctx context.Context, message string) (string, error)
}

// dynamicRules is the ordered dispatch table. Section order in the briefing
// is exactly this order.
var dynamicRules = []rule{
	{
		topic:    "leads",
		keywords: []string{"lead", "prospecto", "pipeline", "oportunidad", "embudo"},
		render:   (*Assembler).renderLeads,
	},
	{
		topic:    "clients",
		keywords: []string{"cliente", "client", "cuenta"},
		render:   (*Assembler).renderClients,
	},
	{
		topic:    "projects",
		keywords: []string{"proyecto", "project", "desarrollo", "entrega"},
		render:   (*Assembler).renderProjects,
	},
	{
		topic:    "finance",
		keywords: []string{"factura", "invoice", "ingreso", "gasto", "finanza", "cobro", "pago", "mrr"},
		render:   (*Assembler).renderFinance,
	},
	{
		topic:    "marketing",
		keywords: []string{"marketing", "social", "post", "publicacion", "publicación", "instagram", "linkedin"},
		render:   (*Assembler).renderMarketing,
	},
	{
		topic:    "webinars",
		keywords: []string{"webinar", "evento", "taller"},
		render:   (*Assembler).renderWebinars,
	},
	{
		topic:    "calls",
		keywords: []string{"llamada", "call", "agenda", "reunion", "reunión"},
		render:   (*Assembler).renderCalls,
	},
	{
		topic:    "proposals",
		keywords: []string{"propuesta", "proposal", "presupuesto"},
		render:   (*Assembler).renderProposals,
	},
	{
		topic:    "team",
		keywords: []string{"equipo", "team", "quien", "quién", "asigna"},
		render:   (*Assembler).renderTeam,
	},
	{
		topic:    "tasks",
		keywords: []string{"tarea", "task", "pendiente"},
		render:   (*Assembler).renderTasks,
	},
	{
		topic: "company_search",
		// Fired by the extraction pattern, not by plain keywords.
		keywords: nil,
		render:   (*Assembler).renderCompanySearch,
	},
	{
		topic: "predictive",
		keywords: []string{
			"riesgo", "análisis", "analisis", "analiza",
			"recomend", "predic", "insight", "conversión", "conversion",
		},
		render: (*Assembler).renderPredictive,
	},
}

// companyNamePattern extracts a candidate company name following one of the
// trigger words. The capture stops at sentence punctuation.
var companyNamePattern = regexp.MustCompile(
	`(?i)(?:empresa|cliente|lead|company|sobre)\s+([\p{L}\p{N}][\p{L}\p{N}&.\- ]{0,40})`)

// Dynamic walks the rule table against the message and concatenates the
// sections of every fired rule, in table order. A renderer failure drops
// that section and logs; Dynamic itself never fails the turn.
func (a *Assembler) Dynamic(ctx context.Context, message string) string {
	lower := strings.ToLower(message)

	var b strings.Builder
	for _, r := range dynamicRules {
		if !r.fires(lower, message) {
			continue
		}
		section, err := r.render(a, ctx, message)
		if err != nil {
			a.log.Warn("dynamic briefing section failed", "topic", r.topic, "error", err)
			continue
		}
		if section != "" {
			b.WriteString(section)
		}
	}
	return b.String()
}

// Topics returns the topics that would fire for message, for the persisted
// context summary.
func Topics(message string) []string {
	lower := strings.ToLower(message)
	topics := []string{}
	for _, r := range dynamicRules {
		if r.fires(lower, message) {
			topics = append(topics, r.topic)
		}
	}
	return topics
}

func (r *rule) fires(lowerMessage, message string) bool {
	if r.topic == "company_search" {
		return companyNamePattern.MatchString(message)
	}
	for _, kw := range r.keywords {
		if strings.Contains(lowerMessage, kw) {
			return true
		}
	}
	return false
}

// ===== Section renderers =====

func (a *Assembler) renderLeads(ctx context.Context, _ string) (string, error) {
	leads, err := a.src.ActiveLeads(ctx, dynLeadCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== LEADS ACTIVOS ==\n")
	if len(leads) == 0 {
		b.WriteString("No hay leads activos.\n")
		return b.String(), nil
	}
	for _, l := range leads {
		fmt.Fprintf(&b, "- [%s] %s (%s) · %s · canal %s · valor %s · id=%s\n",
			l.Stage, l.Name, l.Company, l.OwnerID, l.Channel, money(l.MonthlyValue), l.ID)
	}
	return b.String(), nil
}

func (a *Assembler) renderClients(ctx context.Context, _ string) (string, error) {
	clients, err := a.src.RecentClients(ctx, dynClientCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== CLIENTES ==\n")
	if len(clients) == 0 {
		b.WriteString("No hay clientes registrados.\n")
		return b.String(), nil
	}
	for _, c := range clients {
		state := "activo"
		if !c.Active {
			state = "inactivo"
		}
		fmt.Fprintf(&b, "- %s (%s) · %s/mes · %s\n", c.Name, c.Company, money(c.MonthlyRevenue), state)
	}
	return b.String(), nil
}

func (a *Assembler) renderProjects(ctx context.Context, _ string) (string, error) {
	projects, err := a.src.RecentProjects(ctx, dynProjectCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== PROYECTOS ==\n")
	if len(projects) == 0 {
		b.WriteString("No hay proyectos registrados.\n")
		return b.String(), nil
	}
	for _, p := range projects {
		fmt.Fprintf(&b, "- %s (%s) · comercial %s", p.Name, p.ClientName, p.CommercialStage)
		if p.ExecutionStage != "" {
			fmt.Fprintf(&b, " · ejecución %s", p.ExecutionStage)
		}
		fmt.Fprintf(&b, " · %s/mes\n", money(p.MonthlyRevenue))
	}
	return b.String(), nil
}

// renderFinance lists invoices awaiting payment. Paid invoices are settled
// business and stay out of the section; the finance questions this answers
// ("facturas vencidas", "qué cobros faltan") are about open money.
func (a *Assembler) renderFinance(ctx context.Context, _ string) (string, error) {
	invoices, err := a.src.RecentInvoices(ctx, dynInvoiceCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== FACTURAS ==\n")
	open := 0
	for _, inv := range invoices {
		if inv.Status == store.InvoicePaid {
			continue
		}
		open++
		fmt.Fprintf(&b, "- %s %s · %s · vence %s\n",
			invoiceGlyph(inv.Status), inv.ClientName, money(inv.Amount),
			inv.DueAt.Format("2006-01-02"))
	}
	if open == 0 {
		b.WriteString("No hay facturas pendientes de cobro.\n")
	}
	return b.String(), nil
}

// invoiceGlyph maps an invoice status to its dashboard glyph.
func invoiceGlyph(status string) string {
	switch status {
	case store.InvoicePaid:
		return "✅"
	case store.InvoicePending:
		return "⏳"
	default:
		return "❌"
	}
}

func (a *Assembler) renderMarketing(ctx context.Context, _ string) (string, error) {
	posts, err := a.src.RecentSocialPosts(ctx, dynSocialCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== MARKETING / REDES ==\n")
	if len(posts) == 0 {
		b.WriteString("No hay publicaciones programadas.\n")
		return b.String(), nil
	}
	for _, p := range posts {
		fmt.Fprintf(&b, "- [%s] %s · %s · %s\n",
			p.Platform, p.Status, p.ScheduledAt.Format("2006-01-02"), truncate(p.Content, 80))
	}
	return b.String(), nil
}

func (a *Assembler) renderWebinars(ctx context.Context, _ string) (string, error) {
	webinars, err := a.src.UpcomingWebinars(ctx, dynWebinarCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== WEBINARS ==\n")
	if len(webinars) == 0 {
		b.WriteString("No hay webinars próximos.\n")
		return b.String(), nil
	}
	for _, w := range webinars {
		fmt.Fprintf(&b, "- %s · %s · %d inscritos\n",
			w.Title, w.ScheduledAt.Format("2006-01-02 15:04"), w.Registered)
	}
	return b.String(), nil
}

func (a *Assembler) renderCalls(ctx context.Context, _ string) (string, error) {
	now := a.now()
	weekStart := startOfWeek(now)
	calls, err := a.src.CallsBetween(ctx, weekStart, weekStart.AddDate(0, 0, 7), dynCallCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== LLAMADAS DE LA SEMANA ==\n")
	if len(calls) == 0 {
		b.WriteString("No hay llamadas programadas esta semana.\n")
		return b.String(), nil
	}
	for _, c := range calls {
		state := "pendiente"
		if c.Completed {
			state = "completada"
			if c.Outcome != "" {
				state += " (" + c.Outcome + ")"
			}
		}
		fmt.Fprintf(&b, "- %s · %s · %s\n",
			c.LeadName, c.ScheduledAt.Format("Mon 15:04"), state)
	}
	return b.String(), nil
}

func (a *Assembler) renderProposals(ctx context.Context, _ string) (string, error) {
	proposals, err := a.src.OpenProposals(ctx, dynProposalCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== PROPUESTAS ABIERTAS ==\n")
	if len(proposals) == 0 {
		b.WriteString("No hay propuestas abiertas.\n")
		return b.String(), nil
	}
	for _, p := range proposals {
		fmt.Fprintf(&b, "- %s · %s · %s · enviada %s\n",
			p.LeadName, p.Status, money(p.Amount), p.SentAt.Format("2006-01-02"))
	}
	return b.String(), nil
}

func (a *Assembler) renderTeam(ctx context.Context, _ string) (string, error) {
	members, err := a.src.TeamMembers(ctx, dynTeamCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== EQUIPO ==\n")
	if len(members) == 0 {
		b.WriteString("No hay miembros de equipo registrados.\n")
		return b.String(), nil
	}
	for _, m := range members {
		fmt.Fprintf(&b, "- %s · %s · id=%s\n", m.Name, m.Role, m.ID)
	}
	return b.String(), nil
}

func (a *Assembler) renderTasks(ctx context.Context, _ string) (string, error) {
	tasks, err := a.src.OpenTasks(ctx, dynTaskCap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("== TAREAS PENDIENTES ==\n")
	if len(tasks) == 0 {
		b.WriteString("No hay tareas pendientes.\n")
		return b.String(), nil
	}
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %s · proyecto %s · id=%s", t.Title, t.ProjectID, t.ID)
		if t.DueAt != nil {
			fmt.Fprintf(&b, " · vence %s", t.DueAt.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// renderCompanySearch extracts a company name from the message and matches
// it against leads and clients. No match contributes nothing, silently.
func (a *Assembler) renderCompanySearch(ctx context.Context, message string) (string, error) {
	m := companyNamePattern.FindStringSubmatch(message)
	if m == nil {
		return "", nil
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return "", nil
	}
	matches, err := a.src.SearchCompanies(ctx, name, dynCompanyCap)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "== BÚSQUEDA: %q ==\n", name)
	for _, c := range matches {
		if c.Kind == "lead" {
			fmt.Fprintf(&b, "- Lead: %s (%s) · etapa %s · valor %s\n",
				c.Name, c.Company, c.Stage, money(c.MonthlyValue))
		} else {
			fmt.Fprintf(&b, "- Cliente: %s (%s) · %s/mes\n",
				c.Name, c.Company, money(c.MonthlyValue))
		}
	}
	return b.String(), nil
}
