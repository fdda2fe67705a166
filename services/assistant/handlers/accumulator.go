// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers provides the HTTP handlers of the assistant service.
//
// This file implements the token accumulator used while relaying a model
// response. Tokens are held in mlocked memory so partial business data from
// the briefing cannot be swapped to disk mid-stream; systems without
// adequate mlock limits fall back to plain memory with a warning when
// PULSO_INSECURE_MEMORY=true is set.
package handlers

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

const (
	// accumulatorBufSize caps one assistant response, action results
	// included. 512 KB is roughly 130k tokens.
	accumulatorBufSize = 512 * 1024

	// minMlockKB is the mlock limit required for the secure accumulator.
	minMlockKB = 512

	insecureMemoryEnv = "PULSO_INSECURE_MEMORY"
)

var (
	memguardOnce    sync.Once
	mlockSufficient bool
	mlockLimitKB    int64
)

// TokenAccumulator collects streamed tokens into one response string.
// Safe for concurrent use. Not reusable after Finalize or Destroy.
type TokenAccumulator interface {
	// Write appends one token. Fails on overflow or after finalization.
	Write(token string) error

	// Finalize returns the accumulated text and wipes the buffer.
	Finalize() (string, error)

	// Destroy wipes the buffer without returning data. Idempotent; use on
	// error and cancellation paths.
	Destroy()
}

// NewTokenAccumulator returns a secure accumulator when the system allows
// mlock, the plain fallback when PULSO_INSECURE_MEMORY=true, and an error
// otherwise.
func NewTokenAccumulator() (TokenAccumulator, error) {
	memguardOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, mlockLimitKB = checkMlockLimit()
	})

	if mlockSufficient {
		buf := memguard.NewBuffer(accumulatorBufSize)
		if buf == nil {
			return nil, fmt.Errorf("allocate secure buffer of %d bytes", accumulatorBufSize)
		}
		buf.Melt()
		return &secureAccumulator{buffer: buf}, nil
	}

	if os.Getenv(insecureMemoryEnv) == "true" {
		slog.Warn("using plain-memory accumulator, mlock limit insufficient",
			"limit_kb", mlockLimitKB, "required_kb", minMlockKB)
		return &plainAccumulator{data: make([]byte, 0, accumulatorBufSize)}, nil
	}

	return nil, fmt.Errorf(
		"mlock limit insufficient: have %d KB, need %d KB (raise the limit or set %s=true)",
		mlockLimitKB, minMlockKB, insecureMemoryEnv)
}

// checkMlockLimit reads RLIMIT_MEMLOCK. An unreadable limit is treated as
// sufficient; allocation will fail loudly if it is not.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockKB, limitKB
}

// ===== Secure implementation =====

type secureAccumulator struct {
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	destroyed bool
}

func (a *secureAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.offset+len(token) > a.buffer.Size() {
		return fmt.Errorf("accumulator overflow: %d bytes exceeds %d-byte buffer",
			a.offset+len(token), a.buffer.Size())
	}
	copy(a.buffer.Bytes()[a.offset:], token)
	a.offset += len(token)
	return nil
}

func (a *secureAccumulator) Finalize() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return "", fmt.Errorf("accumulator already destroyed")
	}
	answer := string(a.buffer.Bytes()[:a.offset])
	a.buffer.Destroy()
	a.destroyed = true
	return answer, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.buffer.Destroy()
	a.destroyed = true
}

// ===== Plain fallback =====

type plainAccumulator struct {
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

func (a *plainAccumulator) Write(token string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if len(a.data)+len(token) > accumulatorBufSize {
		return fmt.Errorf("accumulator overflow: %d bytes exceeds %d-byte buffer",
			len(a.data)+len(token), accumulatorBufSize)
	}
	a.data = append(a.data, token...)
	return nil
}

func (a *plainAccumulator) Finalize() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return "", fmt.Errorf("accumulator already destroyed")
	}
	answer := string(a.data)
	a.wipe()
	return answer, nil
}

func (a *plainAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.destroyed {
		a.wipe()
	}
}

// wipe is best effort; the GC may have copied the slice already.
func (a *plainAccumulator) wipe() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}
