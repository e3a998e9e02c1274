package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

// publishEvent sends ev after a committed batch. Failures are logged only,
// the batch is already durable.
func publishEvent(ctx context.Context, p ledger.EventPublisher, typ ledger.EventType, changes []ledger.Change) {
	if p == nil {
		slog.DebugContext(ctx, "Event publisher not available, skipping ledger event", "type", typ)
		return
	}
	if len(changes) == 0 {
		return
	}
	ev := ledger.Event{
		ID:         uuid.NewString(),
		Type:       typ,
		OccurredAt: time.Now().UTC(),
		Changes:    changes,
	}
	if err := p.PublishLedgerEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			applog.FieldEventID, ev.ID,
			"type", typ,
			"error", err)
	}
}
