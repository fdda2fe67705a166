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
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// testNow is the fixed clock for every assembler test: a Wednesday.
var testNow = time.Date(2025, 11, 12, 10, 0, 0, 0, time.UTC)

// fakeSource implements store.BriefingSource from in-memory fixtures.
// Any method named in errs fails with that error.
type fakeSource struct {
	leads      []store.Lead
	newLeads   []store.Lead
	clients    []store.Client
	projects   []store.Project
	tasks      []store.ProjectTask
	invoices   []store.Invoice
	txs        []store.Transaction
	activities []store.Activity
	calls      []store.Call
	proposals  []store.Proposal
	webinars   []store.Webinar
	posts      []store.SocialPost
	members    []store.TeamMember
	matches    []store.CompanyMatch

	errs map[string]error
}

func (f *fakeSource) fail(method string) error {
	if f.errs == nil {
		return nil
	}
	return f.errs[method]
}

func (f *fakeSource) ActiveLeads(_ context.Context, _ int) ([]store.Lead, error) {
	return f.leads, f.fail("ActiveLeads")
}
func (f *fakeSource) LeadsCreatedSince(_ context.Context, _ time.Time, _ int) ([]store.Lead, error) {
	return f.newLeads, f.fail("LeadsCreatedSince")
}
func (f *fakeSource) RecentClients(_ context.Context, _ int) ([]store.Client, error) {
	return f.clients, f.fail("RecentClients")
}
func (f *fakeSource) RecentProjects(_ context.Context, _ int) ([]store.Project, error) {
	return f.projects, f.fail("RecentProjects")
}
func (f *fakeSource) OpenTasks(_ context.Context, _ int) ([]store.ProjectTask, error) {
	return f.tasks, f.fail("OpenTasks")
}
func (f *fakeSource) RecentInvoices(_ context.Context, _ int) ([]store.Invoice, error) {
	return f.invoices, f.fail("RecentInvoices")
}
func (f *fakeSource) TransactionsBetween(_ context.Context, _, _ time.Time, _ int) ([]store.Transaction, error) {
	return f.txs, f.fail("TransactionsBetween")
}
func (f *fakeSource) RecentActivities(_ context.Context, _ int) ([]store.Activity, error) {
	return f.activities, f.fail("RecentActivities")
}
func (f *fakeSource) CallsBetween(_ context.Context, _, _ time.Time, _ int) ([]store.Call, error) {
	return f.calls, f.fail("CallsBetween")
}
func (f *fakeSource) OpenProposals(_ context.Context, _ int) ([]store.Proposal, error) {
	return f.proposals, f.fail("OpenProposals")
}
func (f *fakeSource) UpcomingWebinars(_ context.Context, _ int) ([]store.Webinar, error) {
	return f.webinars, f.fail("UpcomingWebinars")
}
func (f *fakeSource) RecentSocialPosts(_ context.Context, _ int) ([]store.SocialPost, error) {
	return f.posts, f.fail("RecentSocialPosts")
}
func (f *fakeSource) TeamMembers(_ context.Context, _ int) ([]store.TeamMember, error) {
	return f.members, f.fail("TeamMembers")
}
func (f *fakeSource) SearchCompanies(_ context.Context, _ string, _ int) ([]store.CompanyMatch, error) {
	return f.matches, f.fail("SearchCompanies")
}

var _ store.BriefingSource = (*fakeSource)(nil)

func newTestAssembler(src *fakeSource) *Assembler {
	return NewAssembler(src, slog.Default(), func() time.Time { return testNow })
}

func fixtureSource() *fakeSource {
	return &fakeSource{
		leads: []store.Lead{
			{ID: "l-1", Name: "Juan", Company: "Acme", Stage: store.StageNuevo,
				Channel: "webinar", MonthlyValue: 500,
				LastActivityAt: testNow.Add(-1 * time.Hour)},
			{ID: "l-2", Name: "Lucía", Company: "Globex", Stage: store.StageReunion,
				Channel: "referido", MonthlyValue: 900,
				LastActivityAt: testNow.Add(-10 * 24 * time.Hour)},
		},
		newLeads: []store.Lead{
			{ID: "l-1", Name: "Juan", Stage: store.StageNuevo, Channel: "webinar"},
		},
		clients: []store.Client{
			{ID: "c-1", Name: "Globex", Company: "Globex SL", MonthlyRevenue: 1200,
				Active: true, CreatedAt: testNow.Add(-100 * 24 * time.Hour)},
			{ID: "c-2", Name: "Initech", Company: "Initech SA", MonthlyRevenue: 800,
				Active: false, CreatedAt: testNow.Add(-10 * 24 * time.Hour)},
		},
		projects: []store.Project{
			{ID: "p-1", Name: "Web Acme", ClientName: "Acme",
				CommercialStage: store.StageGanado, ExecutionStage: "desarrollo",
				MonthlyRevenue: 600, UpdatedAt: testNow.Add(-2 * 24 * time.Hour)},
		},
		invoices: []store.Invoice{
			{ID: "i-1", ClientName: "Globex", Amount: 1000, Status: store.InvoicePaid,
				IssuedAt: testNow.Add(-20 * 24 * time.Hour), DueAt: testNow.Add(-5 * 24 * time.Hour)},
			{ID: "i-2", ClientName: "Initech", Amount: 700, Status: store.InvoicePending,
				IssuedAt: testNow.Add(-10 * 24 * time.Hour), DueAt: testNow.Add(10 * 24 * time.Hour)},
			{ID: "i-3", ClientName: "Umbrella", Amount: 300, Status: store.InvoiceOverdue,
				IssuedAt: testNow.Add(-40 * 24 * time.Hour), DueAt: testNow.Add(-10 * 24 * time.Hour)},
		},
		txs: []store.Transaction{
			{Kind: store.TxIncome, Amount: 2000, OccurredAt: testNow.Add(-24 * time.Hour)},
			{Kind: store.TxExpense, Amount: 500, OccurredAt: testNow.Add(-48 * time.Hour)},
			{Kind: store.TxIncome, Amount: 1500, OccurredAt: testNow.AddDate(0, 0, -20)},
		},
		activities: []store.Activity{
			{ID: "a-1", LeadID: "l-1", Type: "note", Content: "llamada hecha", Actor: "Ana",
				CreatedAt: testNow.Add(-time.Hour)},
		},
		calls: []store.Call{
			{ID: "call-1", LeadName: "Juan", ScheduledAt: testNow.Add(2 * time.Hour)},
			{ID: "call-2", LeadName: "Lucía", ScheduledAt: testNow.Add(-24 * time.Hour),
				Completed: true, Outcome: "interesada"},
		},
		proposals: []store.Proposal{
			{ID: "pr-1", LeadName: "Lucía", Status: store.ProposalSent, Amount: 900,
				SentAt: testNow.Add(-3 * 24 * time.Hour)},
		},
		webinars: []store.Webinar{
			{ID: "w-1", Title: "Automatiza tu negocio", ScheduledAt: testNow.Add(5 * 24 * time.Hour),
				Registered: 40},
		},
		posts: []store.SocialPost{
			{ID: "sp-1", Platform: "linkedin", Content: "Caso de éxito", Status: "published",
				ScheduledAt: testNow.Add(-24 * time.Hour)},
		},
		members: []store.TeamMember{
			{ID: "u-1", Name: "Ana", Role: "ventas"},
		},
		matches: []store.CompanyMatch{
			{Kind: "lead", Name: "Juan", Company: "Acme", Stage: store.StageNuevo, MonthlyValue: 500},
		},
	}
}

// ===== Base =====

func TestBase_RendersSummary(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	out, err := a.Base(context.Background())
	if err != nil {
		t.Fatalf("Base failed: %v", err)
	}

	for _, want := range []string{
		"MRR activo: 1200.00 € (1 clientes activos)",
		"Leads activos: 2",
		"NUEVO=1",
		"REUNION=1",
		"referido=1",
		"Leads sin actividad en 7 días: 1 (Lucía)",
		"Leads nuevos en 7 días: 1",
		"ingresos 2000.00 €",
		"gastos 500.00 €",
		"mes anterior: ingresos 1500.00 €",
		"Llamadas esta semana: 2 (1 completadas)",
		"Propuestas abiertas: 1",
		"llamada hecha",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("base briefing missing %q\n---\n%s", want, out)
		}
	}
}

func TestBase_SingleFetchFailureDropsOnlyItsSection(t *testing.T) {
	t.Parallel()

	src := fixtureSource()
	src.errs = map[string]error{"OpenProposals": fmt.Errorf("timeout")}
	a := newTestAssembler(src)

	out, err := a.Base(context.Background())
	if err != nil {
		t.Fatalf("one failed fetch must not abort: %v", err)
	}
	if strings.Contains(out, "Propuestas abiertas") {
		t.Error("failed fetch's section should be omitted")
	}
	if !strings.Contains(out, "Leads activos: 2") {
		t.Error("other sections should survive")
	}
}

func TestBase_AllFetchesFailingIsHardError(t *testing.T) {
	t.Parallel()

	src := fixtureSource()
	src.errs = map[string]error{}
	for _, m := range []string{
		"ActiveLeads", "LeadsCreatedSince", "RecentClients", "RecentProjects",
		"TransactionsBetween", "CallsBetween", "OpenProposals", "RecentActivities",
	} {
		src.errs[m] = fmt.Errorf("down")
	}
	a := newTestAssembler(src)

	if _, err := a.Base(context.Background()); err == nil {
		t.Fatal("expected hard error when every base fetch fails")
	}
}

// ===== Dynamic =====

func TestDynamic_NoKeywordsNoSections(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	if out := a.Dynamic(context.Background(), "hola, ¿qué tal?"); out != "" {
		t.Errorf("expected empty dynamic briefing, got:\n%s", out)
	}
}

func TestDynamic_KeywordSelectsSection(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	out := a.Dynamic(context.Background(), "¿Cómo va el PIPELINE esta semana?")
	if !strings.Contains(out, "== LEADS ACTIVOS ==") {
		t.Errorf("leads section missing:\n%s", out)
	}
	if strings.Contains(out, "== FACTURAS ==") {
		t.Error("finance section should not fire without its keywords")
	}
}

func TestDynamic_MonotonicUnderAddedKeywords(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	base := a.Dynamic(context.Background(), "estado del pipeline")
	wider := a.Dynamic(context.Background(), "estado del pipeline y las facturas")

	if !strings.Contains(base, "== LEADS ACTIVOS ==") {
		t.Fatal("leads section missing from narrow message")
	}
	// Adding a finance keyword must keep the leads section and add facturas.
	if !strings.Contains(wider, "== LEADS ACTIVOS ==") {
		t.Error("adding a keyword removed an existing section")
	}
	if !strings.Contains(wider, "== FACTURAS ==") {
		t.Error("added keyword did not add its section")
	}
}

func TestDynamic_SectionsFollowTableOrder(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	// Mention finance before leads in the message; output order is fixed.
	out := a.Dynamic(context.Background(), "facturas pendientes y leads nuevos")
	leadsAt := strings.Index(out, "== LEADS ACTIVOS ==")
	financeAt := strings.Index(out, "== FACTURAS ==")
	if leadsAt == -1 || financeAt == -1 {
		t.Fatalf("both sections expected:\n%s", out)
	}
	if leadsAt > financeAt {
		t.Error("sections must follow table order, not message order")
	}
}

func TestDynamic_FinanceListsOnlyOpenInvoices(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	out := a.Dynamic(context.Background(), "facturas vencidas")
	if !strings.Contains(out, "⏳ Initech") {
		t.Error("pending invoice should carry ⏳")
	}
	if !strings.Contains(out, "❌ Umbrella") {
		t.Error("overdue invoice should carry ❌")
	}
	// The paid Globex invoice (1000 €) is settled and must not be listed.
	if strings.Contains(out, "✅") || strings.Contains(out, "1000.00 €") {
		t.Errorf("paid invoice leaked into the finance section:\n%s", out)
	}
}

func TestInvoiceGlyph(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		store.InvoicePaid:    "✅",
		store.InvoicePending: "⏳",
		store.InvoiceOverdue: "❌",
		"CANCELLED":          "❌",
	}
	for status, want := range cases {
		if got := invoiceGlyph(status); got != want {
			t.Errorf("invoiceGlyph(%s) = %s, want %s", status, got, want)
		}
	}
}

func TestDynamic_FailedRuleDropsOnlyItsSection(t *testing.T) {
	t.Parallel()

	src := fixtureSource()
	src.errs = map[string]error{"RecentInvoices": fmt.Errorf("down")}
	a := newTestAssembler(src)

	out := a.Dynamic(context.Background(), "leads y facturas")
	if strings.Contains(out, "== FACTURAS ==") {
		t.Error("failed rule should contribute nothing")
	}
	if !strings.Contains(out, "== LEADS ACTIVOS ==") {
		t.Error("other fired rules should survive")
	}
}

// ===== Company search =====

func TestDynamic_CompanySearchExtractsName(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	out := a.Dynamic(context.Background(), "cuéntame sobre Acme")
	if !strings.Contains(out, `== BÚSQUEDA: "Acme" ==`) {
		t.Errorf("company search section missing:\n%s", out)
	}
	if !strings.Contains(out, "Lead: Juan (Acme)") {
		t.Errorf("match missing:\n%s", out)
	}
}

func TestDynamic_CompanySearchNoMatchIsSilent(t *testing.T) {
	t.Parallel()

	src := fixtureSource()
	src.matches = nil
	a := newTestAssembler(src)

	if out := a.Dynamic(context.Background(), "cuéntame sobre Nadieco"); strings.Contains(out, "BÚSQUEDA") {
		t.Errorf("no-match search should contribute nothing:\n%s", out)
	}
}

// ===== Predictive =====

func TestDynamic_PredictiveFiresOnRiskKeywords(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(fixtureSource())
	out := a.Dynamic(context.Background(), "¿qué riesgos ves en el negocio?")

	for _, want := range []string{
		"== ANÁLISIS PREDICTIVO ==",
		"Leads en riesgo (sin actividad ≥7 días): 1",
		"Lucía (Globex)",
		"Facturas vencidas: 1 por 300.00 €",
		"Facturas por vencer: 1 por 700.00 €",
		"Conversión por canal (90 días):",
		"MRR nuevo en 30 días: 0.00 €",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("predictive briefing missing %q\n---\n%s", want, out)
		}
	}
}

func TestDynamic_PredictiveDegradesOnEmptyData(t *testing.T) {
	t.Parallel()

	a := newTestAssembler(&fakeSource{})
	out := a.Dynamic(context.Background(), "haz un análisis")

	for _, want := range []string{
		"Leads en riesgo (sin actividad ≥7 días): ninguno",
		"Proyectos ganados sin actualizar ≥30 días: ninguno",
		"Facturas vencidas: ninguna",
		"Facturas por vencer: ninguna",
		"Conversión por canal (90 días): sin leads en la ventana",
		"MRR nuevo en 30 días: 0.00 €",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("empty-data predictive missing %q\n---\n%s", want, out)
		}
	}
}

// ===== Topics =====

func TestTopics(t *testing.T) {
	t.Parallel()

	topics := Topics("facturas con riesgo")
	want := []string{"finance", "predictive"}
	if len(topics) != len(want) {
		t.Fatalf("topics = %v, want %v", topics, want)
	}
	for i := range want {
		if topics[i] != want[i] {
			t.Fatalf("topics = %v, want %v", topics, want)
		}
	}
}
