package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Weekly  Frequency = "weekly"
)

const (
	ExpenseType EntryType = "expense"
	IncomeType  EntryType = "income"
)

const (
	ExpensePending ExpenseStatus = "pending"
	ExpensePaid    ExpenseStatus = "paid"

	IncomePending   IncomeStatus = "pending"
	IncomeCompleted IncomeStatus = "completed"
)

type (
	Frequency     string
	EntryType     string
	ExpenseStatus string
	IncomeStatus  string

	// InstallmentGroup links the entries produced by one split operation.
	InstallmentGroup struct {
		GroupID  string `json:"groupId"`
		Position int    `json:"position"` // 1-based
		Total    int    `json:"total"`
	}

	ExpenseEntry struct {
		ID               string            `json:"id"`
		Amount           Money             `json:"amount"`
		Description      string            `json:"description"`
		Category         string            `json:"category"`
		Date             Date              `json:"date"`
		PaymentMethod    string            `json:"paymentMethod,omitempty"`
		Status           ExpenseStatus     `json:"status"`
		InstallmentGroup *InstallmentGroup `json:"installmentGroup,omitempty"`
		RecurringID      string            `json:"recurringId,omitempty"`
	}

	IncomeEntry struct {
		ID          string       `json:"id"`
		Name        string       `json:"name"`
		Amount      Money        `json:"amount"`
		Date        Date         `json:"date"`
		Category    string       `json:"category"`
		Status      IncomeStatus `json:"status"`
		RecurringID string       `json:"recurringId,omitempty"`
	}

	// MonthlyLedger is one calendar month's budget, expenses and income.
	// Amounts are stored in BaseCurrency, which never changes after creation.
	MonthlyLedger struct {
		Key             string           `json:"key"`
		Limit           Money            `json:"limit"`
		BaseIncome      Money            `json:"baseIncome"`
		BaseCurrency    string           `json:"baseCurrency"`
		IncomeGoal      *Money           `json:"incomeGoal,omitempty"`
		CategoryBudgets map[string]Money `json:"categoryBudgets,omitempty"`
		Expenses        []ExpenseEntry   `json:"expenses"`
		Incomes         []IncomeEntry    `json:"incomes"`
	}

	// RecurringRule materializes one entry per elapsed period. NextExecutionDate
	// is the only bookmark of progress.
	RecurringRule struct {
		ID                string    `json:"id"`
		Description       string    `json:"description"`
		Amount            Money     `json:"amount"`
		Category          string    `json:"category"`
		Type              EntryType `json:"type"`
		Frequency         Frequency `json:"frequency"`
		PaymentMethod     string    `json:"paymentMethod,omitempty"`
		StartDate         Date      `json:"startDate"`
		NextExecutionDate Date      `json:"nextExecutionDate"`
		EndDate           Date      `json:"endDate,omitempty"`
		Active            bool      `json:"active"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidCurrency  = errors.New("invalid currency code")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidRule      = errors.New("invalid recurring rule")
	ErrInvalidEntry     = errors.New("invalid entry")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func validateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > 200 {
		return fmt.Errorf("%w: description too long (max 200 characters)", ErrInvalidEntry)
	}
	return nil
}

// ValidCurrency reports whether code looks like an ISO 4217 code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (s ExpenseStatus) Valid() bool {
	return s == ExpensePending || s == ExpensePaid
}

func (s IncomeStatus) Valid() bool {
	return s == IncomePending || s == IncomeCompleted
}

func (e ExpenseEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	if g := e.InstallmentGroup; g != nil {
		if g.GroupID == "" || g.Position < 1 || g.Position > g.Total {
			return fmt.Errorf("%w: installment group", ErrInvalidEntry)
		}
	}
	return nil
}

func (e IncomeEntry) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Name); err != nil {
		return err
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Validate checks the ledger header. Entries are validated when they are added.
func (l MonthlyLedger) Validate() error {
	if _, _, err := ParseLedgerKey(l.Key); err != nil {
		return err
	}
	if !ValidCurrency(l.BaseCurrency) {
		return ErrInvalidCurrency
	}
	if l.Limit.Cents < 0 || l.BaseIncome.Cents < 0 {
		return ErrInvalidAmount
	}
	for cat, b := range l.CategoryBudgets {
		if strings.TrimSpace(cat) == "" {
			return ErrEmptyCategory
		}
		if b.Cents < 0 {
			return ErrInvalidAmount
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (l MonthlyLedger) Clone() MonthlyLedger {
	out := l
	if l.IncomeGoal != nil {
		g := *l.IncomeGoal
		out.IncomeGoal = &g
	}
	if l.CategoryBudgets != nil {
		out.CategoryBudgets = make(map[string]Money, len(l.CategoryBudgets))
		for k, v := range l.CategoryBudgets {
			out.CategoryBudgets[k] = v
		}
	}
	out.Expenses = make([]ExpenseEntry, len(l.Expenses))
	for i, e := range l.Expenses {
		if e.InstallmentGroup != nil {
			g := *e.InstallmentGroup
			e.InstallmentGroup = &g
		}
		out.Expenses[i] = e
	}
	out.Incomes = append([]IncomeEntry(nil), l.Incomes...)
	return out
}

// FindExpense returns the expense with the given id.
func (l MonthlyLedger) FindExpense(id string) (ExpenseEntry, bool) {
	for _, e := range l.Expenses {
		if e.ID == id {
			return e, true
		}
	}
	return ExpenseEntry{}, false
}

// FindIncome returns the income entry with the given id.
func (l MonthlyLedger) FindIncome(id string) (IncomeEntry, bool) {
	for _, e := range l.Incomes {
		if e.ID == id {
			return e, true
		}
	}
	return IncomeEntry{}, false
}

// GroupExpenseIDs returns the ids of entries belonging to an installment group.
func (l MonthlyLedger) GroupExpenseIDs(groupID string) []string {
	var ids []string
	for _, e := range l.Expenses {
		if e.InstallmentGroup != nil && e.InstallmentGroup.GroupID == groupID {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

func (re RecurringRule) Validate() error {
	if err := re.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: start date: %v", ErrInvalidRule, err)
	}
	if !re.NextExecutionDate.IsZero() && re.NextExecutionDate.Before(re.StartDate.Time) {
		return fmt.Errorf("%w: next execution date must not precede start date", ErrInvalidRule)
	}
	if !re.EndDate.IsZero() && re.EndDate.Before(re.StartDate.Time) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidRule)
	}

	switch re.Frequency {
	case Monthly, Weekly, Yearly:
	default:
		return fmt.Errorf("%w: repetition type %q", ErrInvalidRule, re.Frequency)
	}

	switch re.Type {
	case ExpenseType, IncomeType:
	default:
		return fmt.Errorf("%w: entry type %q", ErrInvalidRule, re.Type)
	}

	if err := validateDescription(re.Description); err != nil {
		return err
	}
	if err := re.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(re.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Cursor returns the next period to materialize; a rule that never ran starts at StartDate.
func (re RecurringRule) Cursor() Date {
	if re.NextExecutionDate.IsZero() || re.NextExecutionDate.Before(re.StartDate.Time) {
		return re.StartDate
	}
	return re.NextExecutionDate
}

// NewDateFromTime truncates t to midnight UTC of its calendar day.
func NewDateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}
