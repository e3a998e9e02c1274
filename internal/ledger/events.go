package ledger

import (
	"context"
	"time"

	"bilancio/internal/core"
)

type EventType string

const (
	EventInstallmentCreated    EventType = "installment.created"
	EventInstallmentDeleted    EventType = "installment.deleted"
	EventEntryDeleted          EventType = "entry.deleted"
	EventEntryStatusChanged    EventType = "entry.status_changed"
	EventRecurringMaterialized EventType = "recurring.materialized"
)

type ChangeAction string

const (
	ActionAdded   ChangeAction = "added"
	ActionRemoved ChangeAction = "removed"
	ActionStatus  ChangeAction = "status"
)

// Event describes one committed batch. It is published after the commit and
// consumers must tolerate duplicates and missing events.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Changes    []Change  `json:"changes"`
}

// Change is one entry touched by the batch, flattened for row-oriented sinks.
type Change struct {
	Action      ChangeAction   `json:"action"`
	LedgerKey   string         `json:"ledgerKey"`
	EntryType   core.EntryType `json:"entryType"`
	EntryID     string         `json:"entryId"`
	Date        core.Date      `json:"date"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	Amount      core.Money     `json:"amount"`
	Currency    string         `json:"currency,omitempty"`
	Status      string         `json:"status,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	RecurringID string         `json:"recurringId,omitempty"`
}

type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, ev Event) error
}

// ExpenseChange flattens an expense entry of the ledger at key.
func ExpenseChange(action ChangeAction, key, currency string, e core.ExpenseEntry) Change {
	c := Change{
		Action:      action,
		LedgerKey:   key,
		EntryType:   core.ExpenseType,
		EntryID:     e.ID,
		Date:        e.Date,
		Description: e.Description,
		Category:    e.Category,
		Amount:      e.Amount,
		Currency:    currency,
		Status:      string(e.Status),
		RecurringID: e.RecurringID,
	}
	if e.InstallmentGroup != nil {
		c.GroupID = e.InstallmentGroup.GroupID
	}
	return c
}

func IncomeChange(action ChangeAction, key, currency string, in core.IncomeEntry) Change {
	return Change{
		Action:      action,
		LedgerKey:   key,
		EntryType:   core.IncomeType,
		EntryID:     in.ID,
		Date:        in.Date,
		Description: in.Name,
		Category:    in.Category,
		Amount:      in.Amount,
		Currency:    currency,
		Status:      string(in.Status),
		RecurringID: in.RecurringID,
	}
}
