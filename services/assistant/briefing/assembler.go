// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package briefing assembles the textual business briefing injected into the
// model prompt: a base section computed on every turn, dynamic sections
// selected by keyword rules against the user's message, and a predictive
// analysis section.
//
// Sections are ephemeral. They exist only inside the outbound prompt and are
// never persisted verbatim; the chat handler stores a one-line summary of
// which sections were included alongside the assistant message.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// Row caps for the bulk reads the base section groups in memory.
const (
	baseLeadCap     = 200
	baseProjectCap  = 100
	baseTxCap       = 500
	baseActivityCap = 5
	staleNameCap    = 5
)

const staleLeadAge = 7 * 24 * time.Hour

// Assembler builds briefing text from a BriefingSource.
//
// # Description
//
//	Base() is computed on every turn regardless of the message. Dynamic()
//	walks an ordered rule table and appends one section per fired rule,
//	in table order. A failed fetch drops its section and logs; only a
//	fully failed base is a hard error, because a silently empty briefing
//	would make the model invent numbers.
//
// # Limitations
//
//	All aggregation happens in memory over capped bulk reads. The caps
//	are generous for a company this size; they are not pagination.
type Assembler struct {
	src store.BriefingSource
	log *slog.Logger
	now func() time.Time
}

// NewAssembler wires an Assembler. now is overridable for tests; pass nil
// for time.Now.
func NewAssembler(src store.BriefingSource, log *slog.Logger, now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{src: src, log: log, now: now}
}

// baseData holds the raw reads the base section is grouped from.
type baseData struct {
	activeLeads []store.Lead
	newLeads    []store.Lead
	clients     []store.Client
	projects    []store.Project
	txs         []store.Transaction
	calls       []store.Call
	proposals   []store.Proposal
	activities  []store.Activity
}

// Base renders the always-on briefing section.
//
// The eight reads run concurrently; each failure drops its part of the
// section and is logged. If every read fails the turn cannot proceed and
// Base returns an error.
func (a *Assembler) Base(ctx context.Context) (string, error) {
	now := a.now()
	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	priorMonthStart := monthStart.AddDate(0, -1, 0)

	var data baseData
	errs := make([]error, 8)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data.activeLeads, err = a.src.ActiveLeads(gctx, baseLeadCap)
		errs[0] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.newLeads, err = a.src.LeadsCreatedSince(gctx, now.Add(-staleLeadAge), baseLeadCap)
		errs[1] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.clients, err = a.src.RecentClients(gctx, baseLeadCap)
		errs[2] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.projects, err = a.src.RecentProjects(gctx, baseProjectCap)
		errs[3] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.txs, err = a.src.TransactionsBetween(gctx, priorMonthStart, now, baseTxCap)
		errs[4] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.calls, err = a.src.CallsBetween(gctx, weekStart, weekStart.AddDate(0, 0, 7), baseLeadCap)
		errs[5] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.proposals, err = a.src.OpenProposals(gctx, baseLeadCap)
		errs[6] = err
		return nil
	})
	g.Go(func() error {
		var err error
		data.activities, err = a.src.RecentActivities(gctx, baseActivityCap)
		errs[7] = err
		return nil
	})
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			a.log.Warn("base briefing fetch failed", "error", err)
		}
	}
	if failed == len(errs) {
		return "", fmt.Errorf("base briefing: all %d fetches failed", failed)
	}

	return a.renderBase(now, monthStart, &data, errs), nil
}

// renderBase groups the bulk reads into the base section text. A nil-error
// slot renders even when its data is empty; a failed slot is skipped.
func (a *Assembler) renderBase(now, monthStart time.Time, data *baseData, errs []error) string {
	var b strings.Builder
	b.WriteString("== RESUMEN DEL NEGOCIO ==\n")

	if errs[2] == nil {
		var mrr float64
		active := 0
		for _, c := range data.clients {
			if c.Active {
				mrr += c.MonthlyRevenue
				active++
			}
		}
		fmt.Fprintf(&b, "MRR activo: %s (%d clientes activos)\n", money(mrr), active)
	}

	if errs[0] == nil {
		byStage := map[string]int{}
		byChannel := map[string]int{}
		for _, l := range data.activeLeads {
			byStage[l.Stage]++
			byChannel[l.Channel]++
		}
		fmt.Fprintf(&b, "Leads activos: %d\n", len(data.activeLeads))
		b.WriteString("Leads por etapa: " + countsInOrder(byStage, store.Stages) + "\n")
		b.WriteString("Leads por canal: " + countsSorted(byChannel) + "\n")

		stale := staleLeads(data.activeLeads, now)
		names := make([]string, 0, staleNameCap)
		for _, l := range stale {
			if len(names) == staleNameCap {
				break
			}
			names = append(names, l.Name)
		}
		fmt.Fprintf(&b, "Leads sin actividad en 7 días: %d", len(stale))
		if len(names) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(names, ", "))
		}
		b.WriteString("\n")
	}

	if errs[1] == nil {
		fmt.Fprintf(&b, "Leads nuevos en 7 días: %d\n", len(data.newLeads))
	}

	if errs[3] == nil {
		byCommercial := map[string]int{}
		byExecution := map[string]int{}
		for _, p := range data.projects {
			byCommercial[p.CommercialStage]++
			if p.ExecutionStage != "" {
				byExecution[p.ExecutionStage]++
			}
		}
		fmt.Fprintf(&b, "Proyectos: %d\n", len(data.projects))
		b.WriteString("Proyectos por etapa comercial: " + countsInOrder(byCommercial, store.Stages) + "\n")
		b.WriteString("Proyectos por etapa de ejecución: " + countsSorted(byExecution) + "\n")
	}

	if errs[4] == nil {
		var income, expense, priorIncome float64
		for _, t := range data.txs {
			inMonth := !t.OccurredAt.Before(monthStart)
			switch {
			case t.Kind == store.TxIncome && inMonth:
				income += t.Amount
			case t.Kind == store.TxExpense && inMonth:
				expense += t.Amount
			case t.Kind == store.TxIncome:
				priorIncome += t.Amount
			}
		}
		fmt.Fprintf(&b, "Mes actual: ingresos %s, gastos %s (mes anterior: ingresos %s)\n",
			money(income), money(expense), money(priorIncome))
	}

	if errs[5] == nil {
		completed := 0
		for _, c := range data.calls {
			if c.Completed {
				completed++
			}
		}
		fmt.Fprintf(&b, "Llamadas esta semana: %d (%d completadas)\n", len(data.calls), completed)
	}

	if errs[6] == nil {
		fmt.Fprintf(&b, "Propuestas abiertas: %d\n", len(data.proposals))
	}

	if errs[7] == nil && len(data.activities) > 0 {
		b.WriteString("Actividad reciente:\n")
		for _, act := range data.activities {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", act.Type, act.Actor, truncate(act.Content, 120))
		}
	}

	return b.String()
}

// staleLeads returns non-terminal leads with no activity for staleLeadAge.
func staleLeads(leads []store.Lead, now time.Time) []store.Lead {
	cutoff := now.Add(-staleLeadAge)
	stale := []store.Lead{}
	for _, l := range leads {
		if !store.TerminalStage(l.Stage) && l.LastActivityAt.Before(cutoff) {
			stale = append(stale, l)
		}
	}
	return stale
}

// startOfWeek returns midnight of the Monday of now's week.
func startOfWeek(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
	return day.AddDate(0, 0, -offset)
}

// ===== Rendering helpers =====

func money(v float64) string {
	return fmt.Sprintf("%.2f €", v)
}

// countsInOrder renders counts following a fixed key order, appending any
// unknown keys sorted at the end.
func countsInOrder(counts map[string]int, order []string) string {
	parts := []string{}
	seen := map[string]bool{}
	for _, k := range order {
		seen[k] = true
		if n := counts[k]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", k, n))
		}
	}
	extra := []string{}
	for k := range counts {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	if len(parts) == 0 {
		return "ninguno"
	}
	return strings.Join(parts, ", ")
}

// countsSorted renders counts with keys sorted alphabetically for stable
// output.
func countsSorted(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		label := k
		if label == "" {
			label = "sin canal"
		}
		parts = append(parts, fmt.Sprintf("%s=%d", label, counts[k]))
	}
	if len(parts) == 0 {
		return "ninguno"
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary.
	for max > 0 && s[max]&0xC0 == 0x80 {
		max--
	}
	return s[:max] + "…"
}
