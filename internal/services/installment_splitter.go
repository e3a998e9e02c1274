package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

// MaxInstallments bounds how far into the future a split may reach.
const MaxInstallments = 120

// installmentNamespace seeds entry ids from the group id and position, so a
// retried split with the same GroupID appends nothing twice.
var installmentNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bilancio:installment"))

// InstallmentRequest is an expense to be paid over Periods consecutive months.
// Callers that retry should set GroupID once; an empty one is generated.
type InstallmentRequest struct {
	GroupID       string     `json:"groupId,omitempty"`
	Amount        core.Money `json:"amount"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	PaymentMethod string     `json:"paymentMethod,omitempty"`
	Periods       int        `json:"periods"`
	AnchorDate    core.Date  `json:"date"`
}

// PlacedExpense is a generated entry and the ledger it landed in.
type PlacedExpense struct {
	LedgerKey string            `json:"ledgerKey"`
	Entry     core.ExpenseEntry `json:"entry"`
}

type SplitResult struct {
	GroupID        string          `json:"groupId"`
	Entries        []PlacedExpense `json:"entries"`
	CreatedLedgers []string        `json:"createdLedgers,omitempty"`
}

// InstallmentSplitter spreads installment purchases over monthly ledgers and
// owns the deletion paths that must keep installment groups whole.
type InstallmentSplitter struct {
	store     ledger.Store
	templates *LedgerTemplater
	events    ledger.EventPublisher
	newID     func() string
}

func NewInstallmentSplitter(store ledger.Store, templates *LedgerTemplater, events ledger.EventPublisher) *InstallmentSplitter {
	return &InstallmentSplitter{
		store:     store,
		templates: templates,
		events:    events,
		newID:     uuid.NewString,
	}
}

// Split writes one entry per period into consecutive monthly ledgers in a
// single batch. The first entry is paid, the rest pending, and the last one
// absorbs the rounding remainder.
func (s *InstallmentSplitter) Split(ctx context.Context, req InstallmentRequest) (SplitResult, error) {
	if req.Periods < 2 || req.Periods > MaxInstallments {
		return SplitResult{}, &core.LedgerError{
			Op:   applog.OpSplit,
			Kind: core.ErrInvalidPeriodCount,
			Err:  fmt.Errorf("periods must be between 2 and %d, got %d", MaxInstallments, req.Periods),
		}
	}
	if err := req.AnchorDate.Validate(); err != nil {
		return SplitResult{}, fmt.Errorf("split: %w: %v", core.ErrInvalidDate, err)
	}
	amounts, err := req.Amount.SplitEven(req.Periods)
	if err != nil {
		return SplitResult{}, fmt.Errorf("split %s over %d periods: %w", req.Amount, req.Periods, err)
	}

	anchorKey := req.AnchorDate.LedgerKey()
	tpl, err := s.templates.Resolve(ctx, anchorKey)
	if err != nil {
		return SplitResult{}, fmt.Errorf("resolve ledger template: %w", err)
	}

	result := SplitResult{GroupID: req.GroupID}
	if result.GroupID == "" {
		result.GroupID = s.newID()
	}
	muts := make([]ledger.Mutation, 0, req.Periods)
	changes := make([]ledger.Change, 0, req.Periods)

	for i := 0; i < req.Periods; i++ {
		date := core.NthMonthlyPeriod(req.AnchorDate, i)
		key := date.LedgerKey()

		status := core.ExpensePending
		if i == 0 {
			status = core.ExpensePaid
		}
		entry := core.ExpenseEntry{
			ID:            installmentEntryID(result.GroupID, i+1),
			Amount:        amounts[i],
			Description:   req.Description,
			Category:      req.Category,
			Date:          date,
			PaymentMethod: req.PaymentMethod,
			Status:        status,
			InstallmentGroup: &core.InstallmentGroup{
				GroupID:  result.GroupID,
				Position: i + 1,
				Total:    req.Periods,
			},
		}
		if err := entry.Validate(); err != nil {
			return SplitResult{}, fmt.Errorf("split: %w", err)
		}

		currency := tpl.BaseCurrency
		existing, err := s.store.Get(ctx, key)
		switch {
		case err == nil:
			currency = existing.BaseCurrency
			muts = append(muts, ledger.AppendExpense(key, entry))
		case errors.Is(err, core.ErrLedgerNotFound):
			l := tpl.NewLedger(key)
			l.Expenses = []core.ExpenseEntry{entry}
			muts = append(muts, ledger.CreateLedger(l))
			result.CreatedLedgers = append(result.CreatedLedgers, key)
		default:
			return SplitResult{}, core.BatchFailed(applog.OpSplit, key, fmt.Errorf("read target ledger: %w", err))
		}

		result.Entries = append(result.Entries, PlacedExpense{LedgerKey: key, Entry: entry})
		changes = append(changes, ledger.ExpenseChange(ledger.ActionAdded, key, currency, entry))
	}

	if err := s.store.Batch(ctx, muts); err != nil {
		return SplitResult{}, core.BatchFailed(applog.OpSplit, anchorKey, err)
	}

	slog.InfoContext(ctx, "Installment split committed",
		applog.FieldGroupID, result.GroupID,
		applog.FieldPeriods, req.Periods,
		applog.FieldAmount, req.Amount.Cents,
		"anchor", req.AnchorDate.String(),
		"created_ledgers", len(result.CreatedLedgers))

	publishEvent(ctx, s.events, ledger.EventInstallmentCreated, changes)
	return result, nil
}

func installmentEntryID(groupID string, position int) string {
	return uuid.NewSHA1(installmentNamespace, []byte(fmt.Sprintf("%s/%d", groupID, position))).String()
}

// DeleteGroup removes every entry of an installment group from all ledgers
// in one batch. Deleting an unknown group removes nothing and succeeds.
func (s *InstallmentSplitter) DeleteGroup(ctx context.Context, groupID string) (int, error) {
	ledgers, err := s.store.List(ctx)
	if err != nil {
		return 0, core.BatchFailed(applog.OpDeleteGroup, groupID, fmt.Errorf("list ledgers: %w", err))
	}

	var (
		muts    []ledger.Mutation
		changes []ledger.Change
	)
	for _, l := range ledgers {
		ids := l.GroupExpenseIDs(groupID)
		if len(ids) == 0 {
			continue
		}
		muts = append(muts, ledger.RemoveExpenses(l.Key, ids...))
		for _, id := range ids {
			e, _ := l.FindExpense(id)
			changes = append(changes, ledger.ExpenseChange(ledger.ActionRemoved, l.Key, l.BaseCurrency, e))
		}
	}
	if len(muts) == 0 {
		slog.InfoContext(ctx, "Installment group has no entries left", applog.FieldGroupID, groupID)
		return 0, nil
	}

	if err := s.store.Batch(ctx, muts); err != nil {
		return 0, batchError(applog.OpDeleteGroup, groupID, err)
	}

	slog.InfoContext(ctx, "Installment group deleted",
		applog.FieldGroupID, groupID,
		"removed", len(changes),
		"ledgers", len(muts))

	publishEvent(ctx, s.events, ledger.EventInstallmentDeleted, changes)
	return len(changes), nil
}

// DeleteExpense removes one expense. An expense that belongs to an
// installment group takes the whole group with it.
func (s *InstallmentSplitter) DeleteExpense(ctx context.Context, key, id string) (int, error) {
	l, err := s.store.Get(ctx, key)
	if errors.Is(err, core.ErrLedgerNotFound) {
		return 0, core.NotFound(applog.OpDeleteExpense, key, core.ErrLedgerNotFound)
	}
	if err != nil {
		return 0, core.BatchFailed(applog.OpDeleteExpense, key, err)
	}

	e, ok := l.FindExpense(id)
	if !ok {
		return 0, core.NotFound(applog.OpDeleteExpense, key, core.ErrEntryNotFound)
	}
	if e.InstallmentGroup != nil {
		return s.DeleteGroup(ctx, e.InstallmentGroup.GroupID)
	}

	if err := s.store.Batch(ctx, []ledger.Mutation{ledger.RemoveExpenses(key, id)}); err != nil {
		return 0, batchError(applog.OpDeleteExpense, key, err)
	}
	slog.InfoContext(ctx, "Expense deleted", "ledger", key, "id", id)

	publishEvent(ctx, s.events, ledger.EventEntryDeleted,
		[]ledger.Change{ledger.ExpenseChange(ledger.ActionRemoved, key, l.BaseCurrency, e)})
	return 1, nil
}

// DeleteIncome removes one income entry.
func (s *InstallmentSplitter) DeleteIncome(ctx context.Context, key, id string) error {
	l, err := s.store.Get(ctx, key)
	if errors.Is(err, core.ErrLedgerNotFound) {
		return core.NotFound(applog.OpDeleteIncome, key, core.ErrLedgerNotFound)
	}
	if err != nil {
		return core.BatchFailed(applog.OpDeleteIncome, key, err)
	}
	in, ok := l.FindIncome(id)
	if !ok {
		return core.NotFound(applog.OpDeleteIncome, key, core.ErrEntryNotFound)
	}

	if err := s.store.Batch(ctx, []ledger.Mutation{ledger.RemoveIncomes(key, id)}); err != nil {
		return batchError(applog.OpDeleteIncome, key, err)
	}
	publishEvent(ctx, s.events, ledger.EventEntryDeleted,
		[]ledger.Change{ledger.IncomeChange(ledger.ActionRemoved, key, l.BaseCurrency, in)})
	return nil
}

// SetExpenseStatus marks one expense paid or pending.
func (s *InstallmentSplitter) SetExpenseStatus(ctx context.Context, key, id string, status core.ExpenseStatus) error {
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	if err := s.store.Batch(ctx, []ledger.Mutation{ledger.SetExpenseStatus(key, id, status)}); err != nil {
		return batchError(applog.OpSetExpenseStatus, key, err)
	}
	if l, err := s.store.Get(ctx, key); err == nil {
		if e, ok := l.FindExpense(id); ok {
			publishEvent(ctx, s.events, ledger.EventEntryStatusChanged,
				[]ledger.Change{ledger.ExpenseChange(ledger.ActionStatus, key, l.BaseCurrency, e)})
		}
	}
	return nil
}

// SetIncomeStatus marks one income pending or completed.
func (s *InstallmentSplitter) SetIncomeStatus(ctx context.Context, key, id string, status core.IncomeStatus) error {
	if !status.Valid() {
		return core.ErrInvalidStatus
	}
	if err := s.store.Batch(ctx, []ledger.Mutation{ledger.SetIncomeStatus(key, id, status)}); err != nil {
		return batchError(applog.OpSetIncomeStatus, key, err)
	}
	if l, err := s.store.Get(ctx, key); err == nil {
		if in, ok := l.FindIncome(id); ok {
			publishEvent(ctx, s.events, ledger.EventEntryStatusChanged,
				[]ledger.Change{ledger.IncomeChange(ledger.ActionStatus, key, l.BaseCurrency, in)})
		}
	}
	return nil
}
