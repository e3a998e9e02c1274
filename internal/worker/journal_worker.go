package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/cache"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
	"bilancio/internal/sheets"
)

// JournalWorker mirrors ledger events into the spreadsheet journal.
// Events are delivered at least once; ids already written are skipped while
// they are remembered by the dedup cache.
type JournalWorker struct {
	journal sheets.JournalWriter
	seen    cache.Cache[int]
}

func NewJournalWorker(journal sheets.JournalWriter, seen cache.Cache[int]) *JournalWorker {
	return &JournalWorker{journal: journal, seen: seen}
}

// HandleEvent writes ev to the journal. A returned error makes the consumer
// requeue the message.
func (w *JournalWorker) HandleEvent(ctx context.Context, ev ledger.Event) error {
	if rows, ok := w.seen.Get(ev.ID); ok {
		slog.DebugContext(ctx, "Skipping duplicate ledger event",
			applog.FieldEventID, ev.ID,
			"rows", rows)
		return nil
	}
	if len(ev.Changes) == 0 {
		w.seen.Set(ev.ID, 0)
		return nil
	}

	slog.InfoContext(ctx, "Processing ledger event",
		applog.FieldEventID, ev.ID,
		"type", ev.Type,
		"changes", len(ev.Changes))

	rows, err := w.journal.AppendEvent(ctx, ev)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to append ledger event to journal",
			applog.FieldEventID, ev.ID,
			"rows_written", rows,
			"error", err)
		return fmt.Errorf("append event %s to journal: %w", ev.ID, err)
	}
	w.seen.Set(ev.ID, rows)
	return nil
}
