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
	"sort"
	"strings"
	"time"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

const (
	wonProjectStaleAge = 30 * 24 * time.Hour
	conversionWindow   = 90 * 24 * time.Hour
	newRevenueWindow   = 30 * 24 * time.Hour
)

// renderPredictive computes the risk/opportunity analysis section. Every
// subsection degrades to a zero/absence line when its collection is empty;
// a failed read drops only that subsection.
func (a *Assembler) renderPredictive(ctx context.Context, _ string) (string, error) {
	now := a.now()
	var b strings.Builder
	b.WriteString("== ANÁLISIS PREDICTIVO ==\n")

	if leads, err := a.src.ActiveLeads(ctx, baseLeadCap); err != nil {
		a.log.Warn("predictive: active leads failed", "error", err)
	} else {
		stale := staleLeads(leads, now)
		if len(stale) == 0 {
			b.WriteString("Leads en riesgo (sin actividad ≥7 días): ninguno\n")
		} else {
			fmt.Fprintf(&b, "Leads en riesgo (sin actividad ≥7 días): %d\n", len(stale))
			for i, l := range stale {
				if i == staleNameCap {
					break
				}
				days := int(now.Sub(l.LastActivityAt).Hours() / 24)
				fmt.Fprintf(&b, "- %s (%s) · etapa %s · %d días sin actividad\n",
					l.Name, l.Company, l.Stage, days)
			}
		}
	}

	if projects, err := a.src.RecentProjects(ctx, baseProjectCap); err != nil {
		a.log.Warn("predictive: projects failed", "error", err)
	} else {
		cutoff := now.Add(-wonProjectStaleAge)
		staleWon := []store.Project{}
		for _, p := range projects {
			if p.CommercialStage == store.StageGanado && p.UpdatedAt.Before(cutoff) {
				staleWon = append(staleWon, p)
			}
		}
		if len(staleWon) == 0 {
			b.WriteString("Proyectos ganados sin actualizar ≥30 días: ninguno\n")
		} else {
			fmt.Fprintf(&b, "Proyectos ganados sin actualizar ≥30 días: %d\n", len(staleWon))
			for _, p := range staleWon {
				fmt.Fprintf(&b, "- %s (%s) · última actualización %s\n",
					p.Name, p.ClientName, p.UpdatedAt.Format("2006-01-02"))
			}
		}
	}

	if invoices, err := a.src.RecentInvoices(ctx, baseLeadCap); err != nil {
		a.log.Warn("predictive: invoices failed", "error", err)
	} else {
		var overdueTotal, upcomingTotal float64
		overdue, upcoming := 0, 0
		for _, inv := range invoices {
			if inv.Status == store.InvoicePaid {
				continue
			}
			if inv.DueAt.Before(now) {
				overdue++
				overdueTotal += inv.Amount
			} else {
				upcoming++
				upcomingTotal += inv.Amount
			}
		}
		if overdue == 0 {
			b.WriteString("Facturas vencidas: ninguna\n")
		} else {
			fmt.Fprintf(&b, "Facturas vencidas: %d por %s\n", overdue, money(overdueTotal))
		}
		if upcoming == 0 {
			b.WriteString("Facturas por vencer: ninguna\n")
		} else {
			fmt.Fprintf(&b, "Facturas por vencer: %d por %s\n", upcoming, money(upcomingTotal))
		}
	}

	if leads, err := a.src.LeadsCreatedSince(ctx, now.Add(-conversionWindow), baseTxCap); err != nil {
		a.log.Warn("predictive: conversion window failed", "error", err)
	} else {
		b.WriteString(renderConversion(leads))
	}

	if clients, err := a.src.RecentClients(ctx, baseLeadCap); err != nil {
		a.log.Warn("predictive: clients failed", "error", err)
	} else {
		cutoff := now.Add(-newRevenueWindow)
		var newMRR float64
		for _, c := range clients {
			if c.Active && !c.CreatedAt.Before(cutoff) {
				newMRR += c.MonthlyRevenue
			}
		}
		fmt.Fprintf(&b, "MRR nuevo en 30 días: %s\n", money(newMRR))
	}

	return b.String(), nil
}

// renderConversion groups a 90-day lead window by channel and renders the
// won ratio per channel.
func renderConversion(leads []store.Lead) string {
	if len(leads) == 0 {
		return "Conversión por canal (90 días): sin leads en la ventana\n"
	}
	type stat struct{ total, won int }
	byChannel := map[string]*stat{}
	for _, l := range leads {
		s := byChannel[l.Channel]
		if s == nil {
			s = &stat{}
			byChannel[l.Channel] = s
		}
		s.total++
		if l.Stage == store.StageGanado {
			s.won++
		}
	}
	channels := make([]string, 0, len(byChannel))
	for ch := range byChannel {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	var b strings.Builder
	b.WriteString("Conversión por canal (90 días):\n")
	for _, ch := range channels {
		s := byChannel[ch]
		label := ch
		if label == "" {
			label = "sin canal"
		}
		fmt.Fprintf(&b, "- %s: %d/%d (%.0f%%)\n",
			label, s.won, s.total, float64(s.won)/float64(s.total)*100)
	}
	return b.String()
}
