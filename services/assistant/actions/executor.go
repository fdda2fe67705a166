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

	"github.com/pulso-analytics/pulso/services/assistant/store"
)

// Executor runs parsed commands against the action store. New action types
// are added to actionTable, not as branches in Execute.
type Executor struct {
	store store.ActionStore
	log   *slog.Logger
}

// NewExecutor wires an Executor.
func NewExecutor(s store.ActionStore, log *slog.Logger) *Executor {
	return &Executor{store: s, log: log}
}

// actionSpec describes one recognized action type.
type actionSpec struct {
	required []string
	run      func(e *Executor, ctx context.Context, p map[string]string, actor string) (string, error)
}

var actionTable = map[string]actionSpec{
	"CREATE_NOTE": {
		required: []string{"lead_id", "content"},
		run: func(e *Executor, ctx context.Context, p map[string]string, actor string) (string, error) {
			activityType := p["type"]
			if activityType == "" {
				activityType = "note"
			}
			if err := e.store.AppendActivity(ctx, p["lead_id"], activityType, p["content"], actor); err != nil {
				return "", err
			}
			return fmt.Sprintf("Nota registrada en el lead %s.", p["lead_id"]), nil
		},
	},
	"CHANGE_STAGE": {
		required: []string{"lead_id", "new_stage"},
		run: func(e *Executor, ctx context.Context, p map[string]string, _ string) (string, error) {
			stage := strings.ToUpper(strings.TrimSpace(p["new_stage"]))
			if !store.ValidStage(stage) {
				return "", fmt.Errorf("etapa %q no válida (valores: %s)",
					p["new_stage"], strings.Join(store.Stages, ", "))
			}
			if err := e.store.UpdateLeadStage(ctx, p["lead_id"], stage); err != nil {
				return "", err
			}
			return fmt.Sprintf("Lead %s movido a %s.", p["lead_id"], stage), nil
		},
	},
	"ASSIGN_OWNER": {
		required: []string{"lead_id", "owner_id"},
		run: func(e *Executor, ctx context.Context, p map[string]string, _ string) (string, error) {
			if err := e.store.UpdateLeadOwner(ctx, p["lead_id"], p["owner_id"]); err != nil {
				return "", err
			}
			return fmt.Sprintf("Lead %s asignado a %s.", p["lead_id"], p["owner_id"]), nil
		},
	},
	"COMPLETE_TASK": {
		required: []string{"task_id"},
		run: func(e *Executor, ctx context.Context, p map[string]string, actor string) (string, error) {
			if err := e.store.CompleteTask(ctx, p["task_id"], actor); err != nil {
				return "", err
			}
			return fmt.Sprintf("Tarea %s completada.", p["task_id"]), nil
		},
	},
}

// Execute runs cmds sequentially in order and returns one human-readable
// result line per command. Store errors are summarized, never surfaced raw.
// actor is recorded on writes that track who acted.
func (e *Executor) Execute(ctx context.Context, cmds []Command, actor string) []string {
	results := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		results = append(results, e.executeOne(ctx, cmd, actor))
	}
	return results
}

func (e *Executor) executeOne(ctx context.Context, cmd Command, actor string) string {
	spec, ok := actionTable[cmd.Type]
	if !ok {
		e.log.Warn("unrecognized action type", "type", cmd.Type)
		return fmt.Sprintf("⚠️ Acción no reconocida: %s", cmd.Type)
	}

	missing := []string{}
	for _, key := range spec.required {
		if cmd.Params[key] == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Sprintf("❌ %s: faltan parámetros (%s)", cmd.Type, strings.Join(missing, ", "))
	}

	msg, err := spec.run(e, ctx, cmd.Params, actor)
	if err != nil {
		e.log.Error("action failed", "type", cmd.Type, "error", err)
		return fmt.Sprintf("❌ %s: %s", cmd.Type, summarize(err))
	}
	e.log.Info("action executed", "type", cmd.Type)
	return "✅ " + msg
}

// summarize keeps the first line of an error so store internals do not leak
// into the chat stream.
func summarize(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	if len(msg) > 200 {
		msg = msg[:200] + "…"
	}
	return msg
}
