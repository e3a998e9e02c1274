package services

import (
	"context"
	"errors"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// LedgerTemplate holds the header fields copied into ledgers created on demand.
type LedgerTemplate struct {
	Limit           core.Money
	BaseCurrency    string
	CategoryBudgets map[string]core.Money
	Source          string // key of the ledger the template was cloned from, empty for the default
}

// NewLedger returns an empty ledger for key carrying the template header.
func (t LedgerTemplate) NewLedger(key string) core.MonthlyLedger {
	l := core.MonthlyLedger{
		Key:          key,
		Limit:        t.Limit,
		BaseCurrency: t.BaseCurrency,
	}
	if len(t.CategoryBudgets) > 0 {
		l.CategoryBudgets = make(map[string]core.Money, len(t.CategoryBudgets))
		for k, v := range t.CategoryBudgets {
			l.CategoryBudgets[k] = v
		}
	}
	return l
}

// LedgerTemplater resolves the "current" ledger a new month is cloned from.
type LedgerTemplater struct {
	store           ledger.Store
	defaultCurrency string
}

func NewLedgerTemplater(store ledger.Store, defaultCurrency string) *LedgerTemplater {
	return &LedgerTemplater{store: store, defaultCurrency: defaultCurrency}
}

// Resolve returns the template for key. The ledger at key wins, then the
// closest earlier ledger, then the most recent one. With no ledgers at all
// the template is empty in the default currency.
func (t *LedgerTemplater) Resolve(ctx context.Context, key string) (LedgerTemplate, error) {
	l, err := t.store.Get(ctx, key)
	if err == nil {
		return templateFrom(l), nil
	}
	if !errors.Is(err, core.ErrLedgerNotFound) {
		return LedgerTemplate{}, fmt.Errorf("read template ledger %s: %w", key, err)
	}

	all, err := t.store.List(ctx)
	if err != nil {
		return LedgerTemplate{}, fmt.Errorf("list ledgers: %w", err)
	}

	var earlier, latest *core.MonthlyLedger
	for i := range all {
		c := &all[i]
		if c.Key < key && (earlier == nil || c.Key > earlier.Key) {
			earlier = c
		}
		if latest == nil || c.Key > latest.Key {
			latest = c
		}
	}
	switch {
	case earlier != nil:
		return templateFrom(*earlier), nil
	case latest != nil:
		return templateFrom(*latest), nil
	}
	return LedgerTemplate{BaseCurrency: t.defaultCurrency}, nil
}

func templateFrom(l core.MonthlyLedger) LedgerTemplate {
	return LedgerTemplate{
		Limit:           l.Limit,
		BaseCurrency:    l.BaseCurrency,
		CategoryBudgets: l.Clone().CategoryBudgets,
		Source:          l.Key,
	}
}
