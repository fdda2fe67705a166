// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

// fakeActionStore records every write for assertion.
type fakeActionStore struct {
	calls   []string
	failAll bool
}

func (f *fakeActionStore) AppendActivity(_ context.Context, leadID, activityType, content, actor string) error {
	if f.failAll {
		return fmt.Errorf("db down\nstack detail that must not leak")
	}
	f.calls = append(f.calls, fmt.Sprintf("activity:%s:%s:%s:%s", leadID, activityType, content, actor))
	return nil
}

func (f *fakeActionStore) UpdateLeadStage(_ context.Context, leadID, stage string) error {
	if f.failAll {
		return fmt.Errorf("db down")
	}
	f.calls = append(f.calls, fmt.Sprintf("stage:%s:%s", leadID, stage))
	return nil
}

func (f *fakeActionStore) UpdateLeadOwner(_ context.Context, leadID, ownerID string) error {
	if f.failAll {
		return fmt.Errorf("db down")
	}
	f.calls = append(f.calls, fmt.Sprintf("owner:%s:%s", leadID, ownerID))
	return nil
}

func (f *fakeActionStore) CompleteTask(_ context.Context, taskID, actor string) error {
	if f.failAll {
		return fmt.Errorf("db down")
	}
	f.calls = append(f.calls, fmt.Sprintf("task:%s:%s", taskID, actor))
	return nil
}

func newTestExecutor(store *fakeActionStore) *Executor {
	return NewExecutor(store, slog.Default())
}

func TestExecute_CreateNoteDefaultsType(t *testing.T) {
	t.Parallel()

	store := &fakeActionStore{}
	e := newTestExecutor(store)

	results := e.Execute(context.Background(), Parse(
		"[ACTION: CREATE_NOTE | lead_id=l-1 | content=seguimiento]"), "Ana")
	if len(results) != 1 || !strings.HasPrefix(results[0], "✅") {
		t.Fatalf("expected success result, got %v", results)
	}
	if len(store.calls) != 1 || store.calls[0] != "activity:l-1:note:seguimiento:Ana" {
		t.Errorf("store calls: %v", store.calls)
	}
}

func TestExecute_ChangeStageRejectsInvalidStage(t *testing.T) {
	t.Parallel()

	store := &fakeActionStore{}
	e := newTestExecutor(store)

	results := e.Execute(context.Background(), Parse(
		"[ACTION: CHANGE_STAGE | lead_id=l-1 | new_stage=VOLADO]"), "Ana")
	if len(results) != 1 || !strings.HasPrefix(results[0], "❌") {
		t.Fatalf("expected rejection, got %v", results)
	}
	if !strings.Contains(results[0], "VOLADO") {
		t.Errorf("rejection should name the invalid stage: %q", results[0])
	}
	if len(store.calls) != 0 {
		t.Errorf("invalid stage must not reach the store: %v", store.calls)
	}
}

func TestExecute_ChangeStageNormalizesCase(t *testing.T) {
	t.Parallel()

	store := &fakeActionStore{}
	e := newTestExecutor(store)

	results := e.Execute(context.Background(), Parse(
		"[ACTION: CHANGE_STAGE | lead_id=l-1 | new_stage=ganado]"), "Ana")
	if !strings.HasPrefix(results[0], "✅") {
		t.Fatalf("expected success, got %v", results)
	}
	if store.calls[0] != "stage:l-1:GANADO" {
		t.Errorf("stage not normalized: %v", store.calls)
	}
}

func TestExecute_MissingParams(t *testing.T) {
	t.Parallel()

	store := &fakeActionStore{}
	e := newTestExecutor(store)

	results := e.Execute(context.Background(), Parse(
		"[ACTION: ASSIGN_OWNER | lead_id=l-1]"), "Ana")
	if len(results) != 1 || !strings.HasPrefix(results[0], "❌") {
		t.Fatalf("expected parameter error, got %v", results)
	}
	if !strings.Contains(results[0], "owner_id") {
		t.Errorf("error should name the missing param: %q", results[0])
	}
	if len(store.calls) != 0 {
		t.Errorf("no store call expected: %v", store.calls)
	}
}

func TestExecute_UnknownType(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(&fakeActionStore{})
	results := e.Execute(context.Background(), Parse(
		"[ACTION: LAUNCH_ROCKET | lead_id=l-1]"), "Ana")
	if len(results) != 1 || !strings.HasPrefix(results[0], "⚠️") {
		t.Fatalf("expected unrecognized-action result, got %v", results)
	}
	if !strings.Contains(results[0], "LAUNCH_ROCKET") {
		t.Errorf("result should name the type: %q", results[0])
	}
}

func TestExecute_StoreErrorIsSummarized(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(&fakeActionStore{failAll: true})
	results := e.Execute(context.Background(), Parse(
		"[ACTION: CREATE_NOTE | lead_id=l-1 | content=x]"), "Ana")
	if !strings.HasPrefix(results[0], "❌") {
		t.Fatalf("expected failure result, got %v", results)
	}
	if strings.Contains(results[0], "stack detail") {
		t.Errorf("raw error detail leaked into result: %q", results[0])
	}
}

func TestExecute_MixedSequenceKeepsOrder(t *testing.T) {
	t.Parallel()

	store := &fakeActionStore{}
	e := newTestExecutor(store)

	text := "[ACTION: COMPLETE_TASK | task_id=t-1]" +
		"[ACTION: CHANGE_STAGE | lead_id=l | new_stage=NADA]" +
		"[ACTION: ASSIGN_OWNER | lead_id=l | owner_id=u]"
	results := e.Execute(context.Background(), Parse(text), "Ana")
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !strings.HasPrefix(results[0], "✅") ||
		!strings.HasPrefix(results[1], "❌") ||
		!strings.HasPrefix(results[2], "✅") {
		t.Errorf("result order wrong: %v", results)
	}
	// The failed middle command must not block the third.
	if len(store.calls) != 2 {
		t.Errorf("expected 2 store writes, got %v", store.calls)
	}
}
