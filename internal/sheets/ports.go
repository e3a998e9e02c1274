// Package sheets defines the outbound ports of the spreadsheet journal mirror.
package sheets

import (
	"context"

	"bilancio/internal/ledger"
)

// Ports for outbound adapters.
type (
	// JournalWriter appends one row per entry change of a committed event.
	// Rows are append-only; removals are recorded as rows, never deleted.
	JournalWriter interface {
		AppendEvent(ctx context.Context, ev ledger.Event) (rows int, err error)
	}
)
