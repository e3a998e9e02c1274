package ledger

import (
	"context"

	"bilancio/internal/core"
)

// Ports for the document store holding monthly ledgers and recurring rules.
type (
	// Store is a key-value collection of ledgers keyed by "YYYY-MM". Each
	// document is updated atomically and Batch commits several mutations
	// all-or-nothing. There are no range queries besides List.
	Store interface {
		// Get returns core.ErrLedgerNotFound when the key has no ledger.
		Get(ctx context.Context, key string) (core.MonthlyLedger, error)
		// Set creates or replaces the whole document.
		Set(ctx context.Context, l core.MonthlyLedger) error
		// UpdateFields patches header fields of one ledger.
		UpdateFields(ctx context.Context, key string, patch Patch) error
		// Batch applies every mutation or none of them.
		Batch(ctx context.Context, muts []Mutation) error
		// List returns all ledgers of the user, ordered by key.
		List(ctx context.Context) ([]core.MonthlyLedger, error)
	}

	RuleStore interface {
		ListRules(ctx context.Context) ([]core.RecurringRule, error)
		// GetRule returns core.ErrRuleNotFound for unknown ids.
		GetRule(ctx context.Context, id string) (core.RecurringRule, error)
		SaveRule(ctx context.Context, r core.RecurringRule) error
		DeleteRule(ctx context.Context, id string) error
	}

	// DocumentStore is what the engine needs from a backend.
	DocumentStore interface {
		Store
		RuleStore
	}
)

// Patch carries the header fields UpdateFields may change. Nil fields are
// left untouched. BaseCurrency is only accepted when it equals the stored one.
type Patch struct {
	Limit           *core.Money           `json:"limit,omitempty"`
	BaseIncome      *core.Money           `json:"baseIncome,omitempty"`
	IncomeGoal      *core.Money           `json:"incomeGoal,omitempty"`
	CategoryBudgets map[string]core.Money `json:"categoryBudgets,omitempty"`
	BaseCurrency    *string               `json:"baseCurrency,omitempty"`
}
