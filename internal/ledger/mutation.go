package ledger

import (
	"errors"
	"fmt"

	"bilancio/internal/core"
)

type MutationKind string

const (
	// KindCreateLedger inserts the ledger when the key is free. When another
	// writer created it first, only the seeded entries are appended so a
	// concurrent creation does not drop either side's entries.
	KindCreateLedger     MutationKind = "create_ledger"
	KindAppendExpense    MutationKind = "append_expense"
	KindAppendIncome     MutationKind = "append_income"
	KindRemoveExpenses   MutationKind = "remove_expenses"
	KindRemoveIncomes    MutationKind = "remove_incomes"
	KindSetExpenseStatus MutationKind = "set_expense_status"
	KindSetIncomeStatus  MutationKind = "set_income_status"
	// KindAdvanceRule moves a rule cursor from CursorFrom to CursorTo and
	// fails the whole batch with core.ErrCursorConflict if the stored cursor
	// is no longer CursorFrom.
	KindAdvanceRule MutationKind = "advance_rule"
)

// Mutation is one per-document operation of a batch. Key is a ledger key,
// or a rule id for KindAdvanceRule.
type Mutation struct {
	Kind          MutationKind
	Key           string
	Ledger        *core.MonthlyLedger
	Expense       *core.ExpenseEntry
	Income        *core.IncomeEntry
	EntryIDs      []string
	ExpenseStatus core.ExpenseStatus
	IncomeStatus  core.IncomeStatus
	CursorFrom    core.Date
	CursorTo      core.Date
}

func CreateLedger(l core.MonthlyLedger) Mutation {
	return Mutation{Kind: KindCreateLedger, Key: l.Key, Ledger: &l}
}

func AppendExpense(key string, e core.ExpenseEntry) Mutation {
	return Mutation{Kind: KindAppendExpense, Key: key, Expense: &e}
}

func AppendIncome(key string, in core.IncomeEntry) Mutation {
	return Mutation{Kind: KindAppendIncome, Key: key, Income: &in}
}

func RemoveExpenses(key string, ids ...string) Mutation {
	return Mutation{Kind: KindRemoveExpenses, Key: key, EntryIDs: ids}
}

func RemoveIncomes(key string, ids ...string) Mutation {
	return Mutation{Kind: KindRemoveIncomes, Key: key, EntryIDs: ids}
}

func SetExpenseStatus(key, id string, status core.ExpenseStatus) Mutation {
	return Mutation{Kind: KindSetExpenseStatus, Key: key, EntryIDs: []string{id}, ExpenseStatus: status}
}

func SetIncomeStatus(key, id string, status core.IncomeStatus) Mutation {
	return Mutation{Kind: KindSetIncomeStatus, Key: key, EntryIDs: []string{id}, IncomeStatus: status}
}

func AdvanceRule(ruleID string, from, to core.Date) Mutation {
	return Mutation{Kind: KindAdvanceRule, Key: ruleID, CursorFrom: from, CursorTo: to}
}

// Tx is the working set a store applies a batch to. Implementations stage
// writes and only make them visible once ApplyBatch returned nil.
type Tx interface {
	Ledger(key string) (core.MonthlyLedger, bool, error)
	PutLedger(l core.MonthlyLedger) error
	Rule(id string) (core.RecurringRule, bool, error)
	PutRule(r core.RecurringRule) error
}

var ErrEmptyBatch = errors.New("empty batch")

// ApplyBatch applies muts in order against tx. Any error means the caller must
// discard everything staged in tx.
func ApplyBatch(tx Tx, muts []Mutation) error {
	if len(muts) == 0 {
		return ErrEmptyBatch
	}
	for i, m := range muts {
		if err := apply(tx, m); err != nil {
			return fmt.Errorf("mutation %d (%s %s): %w", i, m.Kind, m.Key, err)
		}
	}
	return nil
}

func apply(tx Tx, m Mutation) error {
	if m.Kind == KindAdvanceRule {
		return advanceRule(tx, m)
	}

	l, found, err := tx.Ledger(m.Key)
	if err != nil {
		return err
	}

	if m.Kind == KindCreateLedger {
		if m.Ledger == nil {
			return errors.New("missing ledger")
		}
		if err := m.Ledger.Validate(); err != nil {
			return err
		}
		if !found {
			return tx.PutLedger(m.Ledger.Clone())
		}
		seed := m.Ledger.Clone()
		for _, e := range seed.Expenses {
			l.Expenses = appendExpense(l.Expenses, e)
		}
		for _, in := range seed.Incomes {
			l.Incomes = appendIncome(l.Incomes, in)
		}
		return tx.PutLedger(l)
	}

	if !found {
		return core.ErrLedgerNotFound
	}

	switch m.Kind {
	case KindAppendExpense:
		if m.Expense == nil {
			return errors.New("missing expense")
		}
		if err := m.Expense.Validate(); err != nil {
			return err
		}
		l.Expenses = appendExpense(l.Expenses, *m.Expense)
	case KindAppendIncome:
		if m.Income == nil {
			return errors.New("missing income")
		}
		if err := m.Income.Validate(); err != nil {
			return err
		}
		l.Incomes = appendIncome(l.Incomes, *m.Income)
	case KindRemoveExpenses:
		drop := idSet(m.EntryIDs)
		kept := l.Expenses[:0:0]
		for _, e := range l.Expenses {
			if _, ok := drop[e.ID]; !ok {
				kept = append(kept, e)
			}
		}
		l.Expenses = kept
	case KindRemoveIncomes:
		drop := idSet(m.EntryIDs)
		kept := l.Incomes[:0:0]
		for _, in := range l.Incomes {
			if _, ok := drop[in.ID]; !ok {
				kept = append(kept, in)
			}
		}
		l.Incomes = kept
	case KindSetExpenseStatus:
		if !m.ExpenseStatus.Valid() {
			return core.ErrInvalidStatus
		}
		if !setExpenseStatus(l.Expenses, m.EntryIDs, m.ExpenseStatus) {
			return core.ErrEntryNotFound
		}
	case KindSetIncomeStatus:
		if !m.IncomeStatus.Valid() {
			return core.ErrInvalidStatus
		}
		if !setIncomeStatus(l.Incomes, m.EntryIDs, m.IncomeStatus) {
			return core.ErrEntryNotFound
		}
	default:
		return fmt.Errorf("unknown mutation kind %q", m.Kind)
	}
	return tx.PutLedger(l)
}

func advanceRule(tx Tx, m Mutation) error {
	r, found, err := tx.Rule(m.Key)
	if err != nil {
		return err
	}
	if !found {
		return core.ErrRuleNotFound
	}
	if !r.Cursor().Equal(m.CursorFrom.Time) {
		return core.ErrCursorConflict
	}
	if m.CursorTo.Before(m.CursorFrom.Time) {
		return errors.New("cursor cannot move backwards")
	}
	r.NextExecutionDate = m.CursorTo
	return tx.PutRule(r)
}

// appendExpense skips entries whose id is already present, so re-applying a
// committed mutation does not duplicate it.
func appendExpense(list []core.ExpenseEntry, e core.ExpenseEntry) []core.ExpenseEntry {
	for _, existing := range list {
		if existing.ID == e.ID {
			return list
		}
	}
	return append(list, e)
}

func appendIncome(list []core.IncomeEntry, in core.IncomeEntry) []core.IncomeEntry {
	for _, existing := range list {
		if existing.ID == in.ID {
			return list
		}
	}
	return append(list, in)
}

func setExpenseStatus(list []core.ExpenseEntry, ids []string, status core.ExpenseStatus) bool {
	want := idSet(ids)
	changed := false
	for i := range list {
		if _, ok := want[list[i].ID]; ok {
			list[i].Status = status
			changed = true
		}
	}
	return changed
}

func setIncomeStatus(list []core.IncomeEntry, ids []string, status core.IncomeStatus) bool {
	want := idSet(ids)
	changed := false
	for i := range list {
		if _, ok := want[list[i].ID]; ok {
			list[i].Status = status
			changed = true
		}
	}
	return changed
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// ApplyPatch applies p to l, enforcing that the base currency never changes.
func ApplyPatch(l core.MonthlyLedger, p Patch) (core.MonthlyLedger, error) {
	if p.BaseCurrency != nil && *p.BaseCurrency != l.BaseCurrency {
		return l, core.ErrBaseCurrencyImmutable
	}
	if p.Limit != nil {
		l.Limit = *p.Limit
	}
	if p.BaseIncome != nil {
		l.BaseIncome = *p.BaseIncome
	}
	if p.IncomeGoal != nil {
		g := *p.IncomeGoal
		l.IncomeGoal = &g
	}
	if p.CategoryBudgets != nil {
		l.CategoryBudgets = make(map[string]core.Money, len(p.CategoryBudgets))
		for k, v := range p.CategoryBudgets {
			l.CategoryBudgets[k] = v
		}
	}
	if err := l.Validate(); err != nil {
		return l, err
	}
	return l, nil
}
