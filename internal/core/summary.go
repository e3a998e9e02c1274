package core

import (
	"sort"
	"time"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string `json:"name"`
	Amount Money  `json:"amount"`
	Budget *Money `json:"budget,omitempty"`
}

// MonthOverview is a compact summary for a specific ledger.
type MonthOverview struct {
	Key           string           `json:"key"`
	Currency      string           `json:"currency"`
	Limit         Money            `json:"limit"`
	TotalExpenses Money            `json:"totalExpenses"`
	PaidExpenses  Money            `json:"paidExpenses"`
	TotalIncome   Money            `json:"totalIncome"`
	Remaining     Money            `json:"remaining"`
	ByCategory    []CategoryAmount `json:"byCategory"`
}

// YearOverview aggregates the ledgers of one calendar year.
type YearOverview struct {
	Year          int             `json:"year"`
	Months        []MonthOverview `json:"months"`
	TotalExpenses Money           `json:"totalExpenses"`
	TotalIncome   Money           `json:"totalIncome"`
}

// Overview computes the category breakdown of l. Categories are sorted by
// descending amount, then name.
func (l MonthlyLedger) Overview() MonthOverview {
	ov := MonthOverview{
		Key:      l.Key,
		Currency: l.BaseCurrency,
		Limit:    l.Limit,
	}
	byCat := map[string]Money{}
	for _, e := range l.Expenses {
		ov.TotalExpenses = ov.TotalExpenses.Add(e.Amount)
		if e.Status == ExpensePaid {
			ov.PaidExpenses = ov.PaidExpenses.Add(e.Amount)
		}
		byCat[e.Category] = byCat[e.Category].Add(e.Amount)
	}
	for _, in := range l.Incomes {
		ov.TotalIncome = ov.TotalIncome.Add(in.Amount)
	}
	ov.Remaining = l.Limit.Sub(ov.TotalExpenses)

	for name, amount := range byCat {
		ca := CategoryAmount{Name: name, Amount: amount}
		if b, ok := l.CategoryBudgets[name]; ok {
			budget := b
			ca.Budget = &budget
		}
		ov.ByCategory = append(ov.ByCategory, ca)
	}
	sort.Slice(ov.ByCategory, func(i, j int) bool {
		a, b := ov.ByCategory[i], ov.ByCategory[j]
		if a.Amount.Cents != b.Amount.Cents {
			return a.Amount.Cents > b.Amount.Cents
		}
		return a.Name < b.Name
	})
	return ov
}

// BuildYearOverview summarises every ledger of year found in ledgers.
// Ledgers with a different base currency are still listed but their totals
// are not mixed into the yearly sums unless they match the first ledger's.
func BuildYearOverview(year int, ledgers []MonthlyLedger) YearOverview {
	yo := YearOverview{Year: year}
	currency := ""
	for _, l := range ledgers {
		y, _, err := ParseLedgerKey(l.Key)
		if err != nil || y != year {
			continue
		}
		ov := l.Overview()
		yo.Months = append(yo.Months, ov)
		if currency == "" {
			currency = l.BaseCurrency
		}
		if l.BaseCurrency == currency {
			yo.TotalExpenses = yo.TotalExpenses.Add(ov.TotalExpenses)
			yo.TotalIncome = yo.TotalIncome.Add(ov.TotalIncome)
		}
	}
	sort.Slice(yo.Months, func(i, j int) bool { return yo.Months[i].Key < yo.Months[j].Key })
	return yo
}

// Month returns the calendar month of an overview's key.
func (o MonthOverview) Month() time.Month {
	_, m, _ := ParseLedgerKey(o.Key)
	return m
}
