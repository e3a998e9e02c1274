package currency

import (
	"context"
	"errors"
	"testing"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

func usdTable() RateTable {
	return RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.RequireFromString("0.92"),
			"GBP": decimal.RequireFromString("0.79"),
			"JPY": decimal.RequireFromString("151.37"),
			"CHF": decimal.RequireFromString("0.9"),
		},
	}
}

func TestFactor(t *testing.T) {
	table := usdTable()
	tests := []struct {
		name      string
		base      string
		display   string
		want      string
		wantStale bool
	}{
		{"same currency", "EUR", "EUR", "1", false},
		{"same unknown currency", "XYZ", "XYZ", "1", false},
		{"pivot to quote", "USD", "EUR", "0.92", false},
		{"quote to pivot", "CHF", "USD", "1.1111111111111111", false},
		{"cross rate", "CHF", "JPY", "168.1888888888888889", false},
		{"missing display rate", "USD", "SEK", "1", true},
		{"missing base rate", "SEK", "USD", "1", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, stale := Factor(tt.base, tt.display, table)
			if stale != tt.wantStale {
				t.Errorf("stale = %v, want %v", stale, tt.wantStale)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Factor(%s, %s) = %s, want %s", tt.base, tt.display, got, tt.want)
			}
		})
	}
}

func TestFactor_Reciprocal(t *testing.T) {
	table := usdTable()
	codes := []string{"USD", "EUR", "GBP", "JPY", "CHF"}
	tolerance := decimal.New(1, -12)
	for _, a := range codes {
		for _, b := range codes {
			ab, _ := Factor(a, b, table)
			ba, _ := Factor(b, a, table)
			if diff := ab.Mul(ba).Sub(one).Abs(); diff.GreaterThan(tolerance) {
				t.Errorf("Factor(%s,%s)*Factor(%s,%s) = %s, off by %s", a, b, b, a, ab.Mul(ba), diff)
			}
		}
	}
}

type stubRates struct {
	table RateTable
	err   error
}

func (s stubRates) FetchRates(context.Context, string) (RateTable, error) { return s.table, s.err }

func sampleLedger() core.MonthlyLedger {
	return core.MonthlyLedger{
		Key:          "2024-01",
		BaseCurrency: "USD",
		Limit:        core.Money{Cents: 100000},
		Expenses: []core.ExpenseEntry{{
			ID: "e1", Amount: core.Money{Cents: 10000}, Description: "Laptop", Category: "Tech",
			Date: core.NewDate(2024, 1, 15), Status: core.ExpensePaid,
		}},
	}
}

func TestProjector_Project(t *testing.T) {
	ctx := context.Background()

	t.Run("converts into display currency", func(t *testing.T) {
		view := NewProjector(stubRates{table: usdTable()}).Project(ctx, sampleLedger(), "eur")
		if view.Stale || view.DisplayCurrency != "EUR" || view.Factor != "0.92" {
			t.Fatalf("view header = %s %s stale=%v", view.DisplayCurrency, view.Factor, view.Stale)
		}
		if view.Limit.Minor != 92000 || view.Expenses[0].Display.Minor != 9200 {
			t.Errorf("limit = %d, expense = %d", view.Limit.Minor, view.Expenses[0].Display.Minor)
		}
		if view.Remaining.Minor != 82800 {
			t.Errorf("remaining = %d, want 82800", view.Remaining.Minor)
		}
		if want := money.New(9200, "EUR").Display(); view.Expenses[0].Display.Formatted != want {
			t.Errorf("formatted = %q, want %q", view.Expenses[0].Display.Formatted, want)
		}
		if view.Expenses[0].Amount.Cents != 10000 {
			t.Error("stored amount changed")
		}
	})

	t.Run("zero-decimal currency", func(t *testing.T) {
		view := NewProjector(stubRates{table: usdTable()}).Project(ctx, sampleLedger(), "JPY")
		if view.Expenses[0].Display.Minor != 15137 {
			t.Errorf("JPY amount = %d, want 15137", view.Expenses[0].Display.Minor)
		}
	})

	t.Run("same currency skips the rate service", func(t *testing.T) {
		view := NewProjector(stubRates{err: errors.New("offline")}).Project(ctx, sampleLedger(), "")
		if view.Stale || view.Limit.Minor != 100000 || view.DisplayCurrency != "USD" {
			t.Errorf("view = %+v", view)
		}
	})

	t.Run("fetch failure shows base amounts", func(t *testing.T) {
		view := NewProjector(stubRates{err: errors.New("offline")}).Project(ctx, sampleLedger(), "EUR")
		if !view.Stale || view.Factor != "1" || view.DisplayCurrency != "USD" {
			t.Errorf("view header = %s %s stale=%v", view.DisplayCurrency, view.Factor, view.Stale)
		}
		if view.Limit.Minor != 100000 {
			t.Errorf("limit = %d, want unconverted 100000", view.Limit.Minor)
		}
	})

	t.Run("missing rate is stale", func(t *testing.T) {
		view := NewProjector(stubRates{table: usdTable()}).Project(ctx, sampleLedger(), "SEK")
		if !view.Stale || view.Limit.Minor != 100000 {
			t.Errorf("view = %+v", view)
		}
	})
}
