// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package prompt renders the persona and instruction block of the system
// prompt. Pure string work, no I/O.
package prompt

import "strings"

const (
	defaultName = "usuario"
	defaultRole = "desconocido"
)

// Build renders the persona block for the given display name and role.
// Missing values fall back to generic placeholders. The briefing sections
// are appended by the caller after this block.
func Build(displayName, role string) string {
	displayName = strings.TrimSpace(displayName)
	role = strings.TrimSpace(role)

	first := defaultName
	full := defaultName
	if displayName != "" {
		full = displayName
		first = strings.Fields(displayName)[0]
	}
	if role == "" {
		role = defaultRole
	}

	var b strings.Builder
	b.WriteString("Eres Pulso, el asistente interno del panel de gestión de Pulso Analytics.\n")
	b.WriteString("Hablas con " + full + " (rol: " + role + "). Dirígete a " + first + " por su nombre.\n\n")
	b.WriteString("Reglas:\n")
	b.WriteString("- Responde en el idioma del usuario, normalmente español, de forma breve y accionable.\n")
	b.WriteString("- Basa cada cifra en el briefing adjunto; si un dato no aparece, dilo en lugar de inventarlo.\n")
	b.WriteString("- Cuando el usuario pida registrar algo, emite un comando con el formato\n")
	b.WriteString("  [ACTION: TIPO | clave=valor | ...] dentro de tu respuesta. Tipos disponibles:\n")
	b.WriteString("  CREATE_NOTE (lead_id, content, type opcional), CHANGE_STAGE (lead_id, new_stage),\n")
	b.WriteString("  ASSIGN_OWNER (lead_id, owner_id), COMPLETE_TASK (task_id).\n")
	b.WriteString("- Etapas válidas: NUEVO, CONTACTADO, REUNION, PROPUESTA, NEGOCIACION, GANADO, PERDIDO.\n")
	b.WriteString("- No muestres identificadores internos salvo que el usuario los pida.\n")
	return b.String()
}
