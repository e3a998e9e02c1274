package services

import (
	"context"
	"errors"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
)

func TestLedgerService_CreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New())

	l, err := svc.CreateLedger(ctx, core.MonthlyLedger{Key: "2024-01", BaseCurrency: "usd", Limit: core.Money{Cents: 100000}})
	if err != nil {
		t.Fatalf("CreateLedger: %v", err)
	}
	if l.BaseCurrency != "USD" {
		t.Errorf("currency = %s, want USD", l.BaseCurrency)
	}

	if _, err := svc.CreateLedger(ctx, core.MonthlyLedger{Key: "2024-01", BaseCurrency: "USD"}); !errors.Is(err, core.ErrLedgerExists) {
		t.Errorf("duplicate create error = %v, want ErrLedgerExists", err)
	}
	if _, err := svc.CreateLedger(ctx, core.MonthlyLedger{Key: "2024-13", BaseCurrency: "USD"}); !errors.Is(err, core.ErrInvalidLedgerKey) {
		t.Errorf("bad key error = %v, want ErrInvalidLedgerKey", err)
	}

	limit := core.Money{Cents: 120000}
	updated, err := svc.UpdateLedger(ctx, "2024-01", ledger.Patch{Limit: &limit})
	if err != nil || updated.Limit.Cents != 120000 {
		t.Fatalf("UpdateLedger = %+v, %v", updated, err)
	}
	eur := "EUR"
	if _, err := svc.UpdateLedger(ctx, "2024-01", ledger.Patch{BaseCurrency: &eur}); !errors.Is(err, core.ErrBaseCurrencyImmutable) {
		t.Errorf("currency change error = %v, want ErrBaseCurrencyImmutable", err)
	}
	if _, err := svc.UpdateLedger(ctx, "2030-01", ledger.Patch{Limit: &limit}); !errors.Is(err, core.ErrLedgerNotFound) {
		t.Errorf("missing ledger error = %v, want ErrLedgerNotFound", err)
	}
}

func TestLedgerService_Rules(t *testing.T) {
	ctx := context.Background()
	svc := NewLedgerService(memory.New())

	rule, err := svc.SaveRule(ctx, core.RecurringRule{
		Description: "Netflix", Amount: core.Money{Cents: 1299}, Category: "Svago",
		Type: core.ExpenseType, Frequency: core.Monthly, StartDate: core.NewDate(2024, 3, 3),
	})
	if err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if rule.ID == "" || !rule.Active || rule.NextExecutionDate.String() != "2024-03-03" {
		t.Errorf("saved rule = %+v", rule)
	}

	rules, err := svc.Rules(ctx)
	if err != nil || len(rules) != 1 {
		t.Fatalf("Rules = %v, %v", rules, err)
	}
	if err := svc.DeleteRule(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if err := svc.DeleteRule(ctx, rule.ID); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("second delete error = %v, want ErrRuleNotFound", err)
	}
}

func TestLedgerService_SaveRuleKeepsCursor(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store)
	mustSet(t, store, core.MonthlyLedger{Key: "2024-01", BaseCurrency: "EUR"})

	rule := core.RecurringRule{
		ID: "gym", Description: "Palestra", Amount: core.Money{Cents: 4500}, Category: "Sport",
		Type: core.ExpenseType, Frequency: core.Monthly, StartDate: core.NewDate(2024, 1, 1),
	}
	created, err := svc.SaveRule(ctx, rule)
	if err != nil {
		t.Fatalf("SaveRule: %v", err)
	}
	if !created.Active || created.ID != "gym" {
		t.Fatalf("created rule = %+v, want active with client id", created)
	}

	if _, err := newProcessor(store, CutoffMonthStart).TickAll(ctx, core.NewDate(2024, 4, 10)); err != nil {
		t.Fatalf("TickAll: %v", err)
	}

	rule.Active = true
	rule.Amount = core.Money{Cents: 5000}
	rule.NextExecutionDate = core.NewDate(2024, 1, 1)
	updated, err := svc.SaveRule(ctx, rule)
	if err != nil {
		t.Fatalf("SaveRule update: %v", err)
	}
	stored := getRule(t, store, "gym")
	if stored.NextExecutionDate.String() != "2024-04-01" || updated.NextExecutionDate.String() != "2024-04-01" {
		t.Errorf("cursor after update = %s, want 2024-04-01", stored.NextExecutionDate)
	}
	if stored.Amount.Cents != 5000 || !stored.Active {
		t.Errorf("update not applied: %+v", stored)
	}

	// A further tick in the same month must not regenerate January to March.
	sum, err := newProcessor(store, CutoffMonthStart).TickAll(ctx, core.NewDate(2024, 4, 20))
	if err != nil || sum.Generated != 0 {
		t.Errorf("tick after update generated %d (err %v), want 0", sum.Generated, err)
	}
}

func TestLedgerService_YearOverview(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	svc := NewLedgerService(store)
	for _, key := range []string{"2024-01", "2024-02", "2025-01"} {
		if _, err := svc.CreateLedger(ctx, core.MonthlyLedger{Key: key, BaseCurrency: "EUR"}); err != nil {
			t.Fatalf("CreateLedger(%s): %v", key, err)
		}
	}
	e := core.ExpenseEntry{ID: "x", Amount: core.Money{Cents: 700}, Description: "Cinema", Category: "Svago", Date: core.NewDate(2024, 2, 3), Status: core.ExpensePaid}
	if err := store.Batch(ctx, []ledger.Mutation{ledger.AppendExpense("2024-02", e)}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	yo, err := svc.YearOverview(ctx, 2024)
	if err != nil {
		t.Fatalf("YearOverview: %v", err)
	}
	if len(yo.Months) != 2 || yo.TotalExpenses.Cents != 700 {
		t.Errorf("year overview = %+v", yo)
	}
	ov, err := svc.MonthOverview(ctx, "2024-02")
	if err != nil || len(ov.ByCategory) != 1 || ov.ByCategory[0].Name != "Svago" {
		t.Errorf("month overview = %+v, %v", ov, err)
	}
}
