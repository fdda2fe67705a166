// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package actions extracts and executes action commands embedded in
// generated text. Grammar:
//
//	[ACTION: <TYPE> | key1=value1 | key2=value2 | ...]
//
// The ACTION: token is matched case-sensitively. Blocks are extracted in
// left-to-right order of appearance.
package actions

import (
	"regexp"
	"strings"
)

// Command is one parsed action block.
type Command struct {
	Type   string
	Params map[string]string
}

// Blocks cannot nest, so the body is everything up to the first ']'.
var actionPattern = regexp.MustCompile(`\[ACTION:\s*([^\]]*)\]`)

// Parse extracts every action command from text, in order of appearance.
// Returns nil when text contains none.
func Parse(text string) []Command {
	matches := actionPattern.FindAllStringSubmatch(text, -1)
	if matches == nil {
		return nil
	}
	cmds := make([]Command, 0, len(matches))
	for _, m := range matches {
		fields := strings.Split(m[1], "|")
		cmd := Command{
			Type:   strings.TrimSpace(fields[0]),
			Params: map[string]string{},
		}
		for _, f := range fields[1:] {
			k, v, ok := strings.Cut(f, "=")
			if !ok {
				continue // malformed pair, skip it but keep the command
			}
			key := strings.TrimSpace(k)
			if key == "" {
				continue
			}
			cmd.Params[key] = strings.TrimSpace(v)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

// Strip returns text with every action block removed, for display contexts
// that should not show raw commands.
func Strip(text string) string {
	return actionPattern.ReplaceAllString(text, "")
}
