package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	applog "bilancio/internal/log"
)

// RecurringSuffix marks descriptions of machine-generated entries.
const RecurringSuffix = " (recurring)"

// maxPeriodsPerRule caps one rule's catch-up inside a single tick. The cursor
// is persisted, so the next tick continues where this one stopped.
const maxPeriodsPerRule = 500

// recurringNamespace seeds deterministic entry ids: the same rule and period
// always produce the same id, which the stores treat as an idempotent append.
var recurringNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("bilancio:recurring"))

// CutoffPolicy decides whether a period is due relative to today.
type CutoffPolicy int

const (
	// CutoffMonthStart materializes periods dated before the first day of
	// today's month; the current month is left for the next month's tick.
	CutoffMonthStart CutoffPolicy = iota
	// CutoffInclusive materializes every period dated on or before today.
	CutoffInclusive
)

// ParseCutoffPolicy accepts "month" (or empty) and "day".
func ParseCutoffPolicy(s string) (CutoffPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "month":
		return CutoffMonthStart, nil
	case "day":
		return CutoffInclusive, nil
	}
	return 0, fmt.Errorf("unknown recurring cutoff %q (want month or day)", s)
}

func (p CutoffPolicy) String() string {
	if p == CutoffInclusive {
		return "day"
	}
	return "month"
}

// Due reports whether the period dated period should exist by today.
func (p CutoffPolicy) Due(period, today core.Date) bool {
	if p == CutoffInclusive {
		return !period.After(today.Time)
	}
	return period.Before(core.FirstOfMonth(today).Time)
}

// RuleFailure records a rule whose batch was not applied during a tick.
type RuleFailure struct {
	RuleID string `json:"ruleId"`
	Err    error  `json:"-"`
	Reason string `json:"error"`
}

// Summary reports the outcome of one tick.
type Summary struct {
	RulesChecked   int             `json:"rulesChecked"`
	RulesAdvanced  int             `json:"rulesAdvanced"`
	Generated      int             `json:"generated"`
	CreatedLedgers []string        `json:"createdLedgers,omitempty"`
	Failures       []RuleFailure   `json:"failures,omitempty"`
	Entries        []ledger.Change `json:"entries,omitempty"`
}

// Err joins the per-rule failures, or returns nil when every rule succeeded.
func (s Summary) Err() error {
	errs := make([]error, 0, len(s.Failures))
	for _, f := range s.Failures {
		errs = append(errs, fmt.Errorf("rule %s: %w", f.RuleID, f.Err))
	}
	return errors.Join(errs...)
}

// RecurringProcessor materializes recurring rules into monthly ledgers. Every
// rule is committed as one batch holding its entries, any ledgers they need,
// and a compare-and-set of the rule cursor.
type RecurringProcessor struct {
	store     ledger.DocumentStore
	templates *LedgerTemplater
	events    ledger.EventPublisher
	cutoff    CutoffPolicy
}

func NewRecurringProcessor(store ledger.DocumentStore, templates *LedgerTemplater, events ledger.EventPublisher, cutoff CutoffPolicy) *RecurringProcessor {
	return &RecurringProcessor{
		store:     store,
		templates: templates,
		events:    events,
		cutoff:    cutoff,
	}
}

// TickAll loads every rule and ticks them.
func (p *RecurringProcessor) TickAll(ctx context.Context, today core.Date) (Summary, error) {
	rules, err := p.store.ListRules(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list recurring rules: %w", err)
	}
	return p.Tick(ctx, rules, today)
}

// Tick generates one entry per elapsed period of every active rule. A rule
// that fails is reported in the summary and does not stop the others; the
// returned error is reserved for failures that prevent the tick altogether.
func (p *RecurringProcessor) Tick(ctx context.Context, rules []core.RecurringRule, today core.Date) (Summary, error) {
	var sum Summary
	today = core.NewDateFromTime(today.Time)

	tpl, err := p.templates.Resolve(ctx, today.LedgerKey())
	if err != nil {
		return sum, fmt.Errorf("resolve ledger template: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"total", len(rules),
		"today", today.String(),
		"cutoff", p.cutoff.String())

	known := map[string]string{} // ledger key -> base currency
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if !rule.Active {
			continue
		}
		sum.RulesChecked++

		res, err := p.materialize(ctx, rule, today, tpl, known)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring rule",
				applog.FieldRuleID, rule.ID,
				"description", rule.Description,
				"error", err)
			sum.Failures = append(sum.Failures, RuleFailure{RuleID: rule.ID, Err: err, Reason: err.Error()})
			continue
		}
		if len(res.changes) == 0 {
			continue
		}

		sum.RulesAdvanced++
		sum.Generated += len(res.changes)
		sum.CreatedLedgers = append(sum.CreatedLedgers, res.created...)
		sum.Entries = append(sum.Entries, res.changes...)

		slog.InfoContext(ctx, "Materialized recurring rule",
			applog.FieldRuleID, rule.ID,
			"description", rule.Description,
			"generated", len(res.changes),
			"next_execution_date", res.cursor.String())

		publishEvent(ctx, p.events, ledger.EventRecurringMaterialized, res.changes)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"checked", sum.RulesChecked,
		"advanced", sum.RulesAdvanced,
		"generated", sum.Generated,
		"failed", len(sum.Failures))

	return sum, nil
}

type ruleOutcome struct {
	changes []ledger.Change
	created []string
	cursor  core.Date
}

func (p *RecurringProcessor) materialize(ctx context.Context, rule core.RecurringRule, today core.Date, tpl LedgerTemplate, known map[string]string) (ruleOutcome, error) {
	if err := rule.Validate(); err != nil {
		return ruleOutcome{}, fmt.Errorf("invalid rule: %w", err)
	}
	schedule, err := GetPeriodSchedule(rule.Frequency)
	if err != nil {
		return ruleOutcome{}, err
	}

	from := rule.Cursor()
	cursor := from
	out := ruleOutcome{cursor: from}

	var muts []ledger.Mutation
	staged := map[string]string{}
	for n := 0; n < maxPeriodsPerRule && p.cutoff.Due(cursor, today); n++ {
		if !rule.EndDate.IsZero() && cursor.After(rule.EndDate.Time) {
			break
		}
		key := cursor.LedgerKey()

		currency, exists := staged[key]
		if !exists {
			currency, exists = known[key]
		}
		if !exists {
			l, err := p.store.Get(ctx, key)
			switch {
			case err == nil:
				currency, exists = l.BaseCurrency, true
				known[key] = currency
			case errors.Is(err, core.ErrLedgerNotFound):
			default:
				return ruleOutcome{}, core.BatchFailed(applog.OpTick, rule.ID, fmt.Errorf("read ledger %s: %w", key, err))
			}
		}

		var change ledger.Change
		var seed core.MonthlyLedger
		if !exists {
			currency = tpl.BaseCurrency
			seed = tpl.NewLedger(key)
		}
		id := uuid.NewSHA1(recurringNamespace, []byte(rule.ID+"/"+cursor.String())).String()

		switch rule.Type {
		case core.IncomeType:
			in := core.IncomeEntry{
				ID:          id,
				Name:        rule.Description + RecurringSuffix,
				Amount:      rule.Amount,
				Date:        cursor,
				Category:    rule.Category,
				Status:      core.IncomePending,
				RecurringID: rule.ID,
			}
			change = ledger.IncomeChange(ledger.ActionAdded, key, currency, in)
			if exists {
				muts = append(muts, ledger.AppendIncome(key, in))
			} else {
				seed.Incomes = []core.IncomeEntry{in}
			}
		default:
			e := core.ExpenseEntry{
				ID:            id,
				Amount:        rule.Amount,
				Description:   rule.Description + RecurringSuffix,
				Category:      rule.Category,
				Date:          cursor,
				PaymentMethod: rule.PaymentMethod,
				Status:        core.ExpensePending,
				RecurringID:   rule.ID,
			}
			change = ledger.ExpenseChange(ledger.ActionAdded, key, currency, e)
			if exists {
				muts = append(muts, ledger.AppendExpense(key, e))
			} else {
				seed.Expenses = []core.ExpenseEntry{e}
			}
		}
		if !exists {
			muts = append(muts, ledger.CreateLedger(seed))
			staged[key] = currency
			out.created = append(out.created, key)
		}
		out.changes = append(out.changes, change)

		cursor = schedule.Next(rule.StartDate, cursor)
	}

	if len(out.changes) == 0 {
		return ruleOutcome{cursor: from}, nil
	}

	muts = append(muts, ledger.AdvanceRule(rule.ID, from, cursor))
	if err := p.store.Batch(ctx, muts); err != nil {
		return ruleOutcome{}, batchError(applog.OpTick, rule.ID, err)
	}
	for key, currency := range staged {
		known[key] = currency
	}
	out.cursor = cursor
	return out, nil
}
