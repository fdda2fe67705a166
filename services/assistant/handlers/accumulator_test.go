// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"strings"
	"testing"
)

func TestPlainAccumulator_WriteAndFinalize(t *testing.T) {
	t.Parallel()

	acc := &plainAccumulator{data: make([]byte, 0, accumulatorBufSize)}
	if err := acc.Write("Hola "); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := acc.Write("mundo"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	answer, err := acc.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if answer != "Hola mundo" {
		t.Errorf("answer = %q", answer)
	}

	// Finalize is terminal.
	if err := acc.Write("más"); err == nil {
		t.Error("Write after Finalize should fail")
	}
	if _, err := acc.Finalize(); err == nil {
		t.Error("second Finalize should fail")
	}
}

func TestPlainAccumulator_Overflow(t *testing.T) {
	t.Parallel()

	acc := &plainAccumulator{data: make([]byte, 0, accumulatorBufSize)}
	if err := acc.Write(strings.Repeat("a", accumulatorBufSize)); err != nil {
		t.Fatalf("fill to capacity: %v", err)
	}
	if err := acc.Write("x"); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestPlainAccumulator_DestroyIsIdempotent(t *testing.T) {
	t.Parallel()

	acc := &plainAccumulator{data: make([]byte, 0, 16)}
	_ = acc.Write("secreto")
	acc.Destroy()
	acc.Destroy()
	if _, err := acc.Finalize(); err == nil {
		t.Error("Finalize after Destroy should fail")
	}
}
