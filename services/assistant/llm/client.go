// Copyright (C) 2025 Pulso Analytics (dev@pulsoanalytics.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package llm streams completions from the upstream model provider.
package llm

import (
	"context"

	"github.com/pulso-analytics/pulso/services/assistant/datatypes"
)

// Client streams a chat completion.
type Client interface {
	// StreamChat sends the system prompt plus messages upstream and calls
	// onDelta once per incremental text fragment, in generation order.
	// A non-nil error from onDelta aborts the stream and is returned.
	//
	// If the upstream call fails before any delta is produced (bad status,
	// network error), StreamChat returns the error without having called
	// onDelta.
	StreamChat(ctx context.Context, system string, messages []datatypes.Message, onDelta func(string) error) error
}
