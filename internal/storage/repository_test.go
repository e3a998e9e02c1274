package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "bilancio.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testExpense(id string) core.ExpenseEntry {
	return core.ExpenseEntry{
		ID:          id,
		Amount:      core.Money{Cents: 1500},
		Description: "Pizza",
		Category:    "Fuori",
		Date:        core.NewDate(2024, 1, 20),
		Status:      core.ExpensePaid,
	}
}

func TestSQLiteLedgerRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	if _, err := repo.Get(ctx, "2024-01"); !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}

	l := core.MonthlyLedger{
		Key:             "2024-01",
		BaseCurrency:    "EUR",
		Limit:           core.Money{Cents: 150000},
		CategoryBudgets: map[string]core.Money{"Fuori": {Cents: 20000}},
	}
	if err := repo.Set(ctx, l); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := repo.Batch(ctx, []ledger.Mutation{ledger.AppendExpense("2024-01", testExpense("e1"))}); err != nil {
		t.Fatalf("Batch: %v", err)
	}

	got, err := repo.Get(ctx, "2024-01")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Expenses) != 1 || got.Expenses[0].Date.String() != "2024-01-20" {
		t.Fatalf("unexpected expenses: %+v", got.Expenses)
	}
	if got.CategoryBudgets["Fuori"].Cents != 20000 {
		t.Fatalf("budgets not persisted: %+v", got.CategoryBudgets)
	}
}

func TestSQLiteBatchRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if err := repo.Set(ctx, core.MonthlyLedger{Key: "2024-01", BaseCurrency: "EUR"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	err := repo.Batch(ctx, []ledger.Mutation{
		ledger.CreateLedger(core.MonthlyLedger{Key: "2024-02", BaseCurrency: "EUR"}),
		ledger.AppendExpense("2024-01", testExpense("e1")),
		ledger.RemoveExpenses("2024-03", "nope"),
	})
	if !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("expected ErrLedgerNotFound, got %v", err)
	}

	if _, err := repo.Get(ctx, "2024-02"); !errors.Is(err, core.ErrLedgerNotFound) {
		t.Fatalf("ledger created by a failed batch: %v", err)
	}
	l, _ := repo.Get(ctx, "2024-01")
	if len(l.Expenses) != 0 {
		t.Fatalf("expense appended by a failed batch")
	}
}

func TestSQLiteRules(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	rule := core.RecurringRule{
		ID: "r1", Description: "Palestra", Amount: core.Money{Cents: 4000}, Category: "Salute",
		Type: core.ExpenseType, Frequency: core.Monthly, StartDate: core.NewDate(2024, 1, 31), Active: true,
	}
	if err := repo.SaveRule(ctx, rule); err != nil {
		t.Fatalf("SaveRule: %v", err)
	}

	advance := ledger.AdvanceRule("r1", core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29))
	if err := repo.Batch(ctx, []ledger.Mutation{advance}); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := repo.Batch(ctx, []ledger.Mutation{advance}); !errors.Is(err, core.ErrCursorConflict) {
		t.Fatalf("expected ErrCursorConflict, got %v", err)
	}

	rules, err := repo.ListRules(ctx)
	if err != nil || len(rules) != 1 || rules[0].NextExecutionDate.String() != "2024-02-29" {
		t.Fatalf("ListRules = %+v, %v", rules, err)
	}

	if err := repo.DeleteRule(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if err := repo.DeleteRule(ctx, "r1"); !errors.Is(err, core.ErrRuleNotFound) {
		t.Fatalf("expected ErrRuleNotFound, got %v", err)
	}
}

func TestSQLiteUpdateFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	_ = repo.Set(ctx, core.MonthlyLedger{Key: "2024-05", BaseCurrency: "EUR"})

	goal := core.Money{Cents: 300000}
	if err := repo.UpdateFields(ctx, "2024-05", ledger.Patch{IncomeGoal: &goal}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	usd := "USD"
	if err := repo.UpdateFields(ctx, "2024-05", ledger.Patch{BaseCurrency: &usd}); !errors.Is(err, core.ErrBaseCurrencyImmutable) {
		t.Fatalf("expected ErrBaseCurrencyImmutable, got %v", err)
	}
	l, _ := repo.Get(ctx, "2024-05")
	if l.IncomeGoal == nil || l.IncomeGoal.Cents != 300000 {
		t.Fatalf("income goal not stored: %+v", l.IncomeGoal)
	}

	ls, err := repo.List(ctx)
	if err != nil || len(ls) != 1 {
		t.Fatalf("List = %d, %v", len(ls), err)
	}
}
