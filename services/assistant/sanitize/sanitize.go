// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sanitize removes characters that would corrupt a text-based wire
// payload: bytes that do not form valid UTF-8 (including WTF-8 encoded lone
// surrogate halves, which free-text columns in the data store have been seen
// to carry), the NUL character, and remaining C0 controls.
package sanitize

import (
	"strings"
	"unicode/utf8"
)

// Clean returns s with transport-hostile characters removed.
//
// Rules, applied in one pass:
//   - invalid UTF-8 sequences are dropped (this covers unpaired surrogate
//     code units, which cannot be expressed as valid UTF-8)
//   - NUL is dropped
//   - tab, LF and CR are kept; briefing text and history are multi-line
//   - every other C0 control and DEL becomes a single space
//
// Clean is total and idempotent: it never fails, and cleaning already-clean
// text returns it unchanged (same backing string, no allocation).
func Clean(s string) string {
	if !needsClean(s) {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			// Invalid byte: part of a lone surrogate or truncated sequence.
			i++
			continue
		}
		switch {
		case r == 0x00:
			// dropped
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7F:
			b.WriteByte(' ')
		default:
			b.WriteRune(r)
		}
		i += size
	}
	return b.String()
}

// needsClean reports whether Clean would modify s.
func needsClean(s string) bool {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return true
		}
		if r == 0x00 || r == 0x7F {
			return true
		}
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
		i += size
	}
	return false
}
