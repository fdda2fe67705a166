// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package sanitize

import "testing"

func TestClean_PassesCleanTextThrough(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"hola mundo",
		"línea uno\nlínea dos\ttabulada\r\n",
		"emoji ✅ y acentos áéíóú",
	}
	for _, in := range inputs {
		if got := Clean(in); got != in {
			t.Errorf("Clean(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestClean_DropsNUL(t *testing.T) {
	t.Parallel()

	if got := Clean("a\x00b"); got != "ab" {
		t.Errorf("Clean dropped NUL wrong: got %q", got)
	}
}

func TestClean_ReplacesControlsWithSpace(t *testing.T) {
	t.Parallel()

	// \x01 and \x1F are C0 controls, \x7F is DEL.
	if got := Clean("a\x01b\x1Fc\x7Fd"); got != "a b c d" {
		t.Errorf("Clean controls: got %q", got)
	}
}

func TestClean_KeepsWhitespaceControls(t *testing.T) {
	t.Parallel()

	in := "a\tb\nc\rd"
	if got := Clean(in); got != in {
		t.Errorf("Clean(%q) = %q, want unchanged", in, got)
	}
}

func TestClean_DropsInvalidUTF8(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		// Lone continuation byte.
		"a\x80b": "ab",
		// Truncated two-byte sequence.
		"a\xC3": "a",
		// WTF-8 encoding of the lone surrogate U+D800.
		"x\xED\xA0\x80y": "xy",
	}
	for in, want := range cases {
		if got := Clean(in); got != want {
			t.Errorf("Clean(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClean_Idempotent(t *testing.T) {
	t.Parallel()

	in := "a\x00b\x01c\xED\xA0\x80d\ne"
	once := Clean(in)
	if twice := Clean(once); twice != once {
		t.Errorf("Clean not idempotent: %q vs %q", once, twice)
	}
}
