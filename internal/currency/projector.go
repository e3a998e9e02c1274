package currency

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"bilancio/internal/core"
)

var one = decimal.NewFromInt(1)

// Factor returns the multiplier that converts base amounts into display
// amounts. It never fails: when either rate is missing the factor is 1 and
// stale is true, so callers keep showing base amounts.
func Factor(base, display string, table RateTable) (factor decimal.Decimal, stale bool) {
	if base == display {
		return one, false
	}
	from, ok := table.Rate(base)
	if !ok {
		return one, true
	}
	to, ok := table.Rate(display)
	if !ok {
		return one, true
	}
	return to.Div(from), false
}

// Amount is a value in the display currency together with its formatted form.
type Amount struct {
	Minor     int64  `json:"minor"`
	Formatted string `json:"formatted"`
}

type ExpenseView struct {
	core.ExpenseEntry
	Display Amount `json:"display"`
}

type IncomeView struct {
	core.IncomeEntry
	Display Amount `json:"display"`
}

// LedgerView is a ledger as shown to a user who picked a display currency.
type LedgerView struct {
	Key             string        `json:"key"`
	BaseCurrency    string        `json:"baseCurrency"`
	DisplayCurrency string        `json:"displayCurrency"`
	Factor          string        `json:"factor"`
	Stale           bool          `json:"stale"`
	Limit           Amount        `json:"limit"`
	BaseIncome      Amount        `json:"baseIncome"`
	TotalExpenses   Amount        `json:"totalExpenses"`
	TotalIncome     Amount        `json:"totalIncome"`
	Remaining       Amount        `json:"remaining"`
	Expenses        []ExpenseView `json:"expenses"`
	Incomes         []IncomeView  `json:"incomes"`
}

// Projector builds display views using rate tables keyed by the ledger's base.
type Projector struct {
	rates RateProvider
}

func NewProjector(rates RateProvider) *Projector {
	return &Projector{rates: rates}
}

// Project converts l into display. An empty display means the base currency.
// A failed rate fetch degrades to factor 1 with Stale set.
func (p *Projector) Project(ctx context.Context, l core.MonthlyLedger, display string) LedgerView {
	display = strings.ToUpper(strings.TrimSpace(display))
	if display == "" {
		display = l.BaseCurrency
	}

	factor, stale := one, false
	if display != l.BaseCurrency {
		table, err := p.rates.FetchRates(ctx, l.BaseCurrency)
		if err != nil {
			slog.WarnContext(ctx, "Rate table unavailable, showing base amounts",
				"base", l.BaseCurrency,
				"display", display,
				"error", err)
			stale = true
		} else {
			factor, stale = Factor(l.BaseCurrency, display, table)
		}
	}
	// A stale factor is 1, so amounts stay in the base currency's units.
	shown := display
	if stale {
		shown = l.BaseCurrency
	}
	conv := converter{from: l.BaseCurrency, to: shown, factor: factor}

	ov := l.Overview()
	view := LedgerView{
		Key:             l.Key,
		BaseCurrency:    l.BaseCurrency,
		DisplayCurrency: shown,
		Factor:          factor.String(),
		Stale:           stale,
		Limit:           conv.amount(l.Limit),
		BaseIncome:      conv.amount(l.BaseIncome),
		TotalExpenses:   conv.amount(ov.TotalExpenses),
		TotalIncome:     conv.amount(ov.TotalIncome),
		Remaining:       conv.amount(ov.Remaining),
		Expenses:        make([]ExpenseView, 0, len(l.Expenses)),
		Incomes:         make([]IncomeView, 0, len(l.Incomes)),
	}
	for _, e := range l.Expenses {
		view.Expenses = append(view.Expenses, ExpenseView{ExpenseEntry: e, Display: conv.amount(e.Amount)})
	}
	for _, in := range l.Incomes {
		view.Incomes = append(view.Incomes, IncomeView{IncomeEntry: in, Display: conv.amount(in.Amount)})
	}
	return view
}

type converter struct {
	from, to string
	factor   decimal.Decimal
}

// amount converts minor units of from into rounded minor units of to.
func (c converter) amount(m core.Money) Amount {
	major := decimal.New(m.Cents, -fraction(c.from))
	minor := major.Mul(c.factor).Shift(fraction(c.to)).Round(0).IntPart()
	return Amount{Minor: minor, Formatted: money.New(minor, c.to).Display()}
}

func fraction(code string) int32 {
	return int32(money.New(0, code).Currency().Fraction)
}
