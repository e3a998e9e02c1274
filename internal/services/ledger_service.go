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

// LedgerService orchestrates ledger setup and rule management on top of the
// document store. Entry-level writes go through the splitter and processor.
type LedgerService struct {
	store ledger.DocumentStore
}

func NewLedgerService(store ledger.DocumentStore) *LedgerService {
	return &LedgerService{store: store}
}

// CreateLedger performs first setup of a month. It fails with
// core.ErrLedgerExists when the key is taken.
func (s *LedgerService) CreateLedger(ctx context.Context, l core.MonthlyLedger) (core.MonthlyLedger, error) {
	l.BaseCurrency = strings.ToUpper(strings.TrimSpace(l.BaseCurrency))
	if err := l.Validate(); err != nil {
		return core.MonthlyLedger{}, fmt.Errorf("create ledger: %w", err)
	}
	if _, err := s.store.Get(ctx, l.Key); err == nil {
		return core.MonthlyLedger{}, &core.LedgerError{Op: applog.OpCreateLedger, Key: l.Key, Kind: core.ErrLedgerExists}
	} else if !errors.Is(err, core.ErrLedgerNotFound) {
		return core.MonthlyLedger{}, core.BatchFailed(applog.OpCreateLedger, l.Key, err)
	}

	// Setup never carries entries; they arrive through the engine.
	l.Expenses, l.Incomes = nil, nil
	if err := s.store.Batch(ctx, []ledger.Mutation{ledger.CreateLedger(l)}); err != nil {
		return core.MonthlyLedger{}, batchError(applog.OpCreateLedger, l.Key, err)
	}
	slog.InfoContext(ctx, "Ledger created",
		applog.FieldLedgerKey, l.Key,
		applog.FieldCurrency, l.BaseCurrency,
		"limit_cents", l.Limit.Cents)
	return s.Ledger(ctx, l.Key)
}

// UpdateLedger patches header fields; the base currency stays fixed.
func (s *LedgerService) UpdateLedger(ctx context.Context, key string, patch ledger.Patch) (core.MonthlyLedger, error) {
	err := s.store.UpdateFields(ctx, key, patch)
	switch {
	case errors.Is(err, core.ErrLedgerNotFound):
		return core.MonthlyLedger{}, core.NotFound(applog.OpUpdateLedger, key, core.ErrLedgerNotFound)
	case err != nil:
		return core.MonthlyLedger{}, fmt.Errorf("update ledger %s: %w", key, err)
	}
	return s.Ledger(ctx, key)
}

func (s *LedgerService) Ledger(ctx context.Context, key string) (core.MonthlyLedger, error) {
	l, err := s.store.Get(ctx, key)
	if errors.Is(err, core.ErrLedgerNotFound) {
		return core.MonthlyLedger{}, core.NotFound(applog.OpGetLedger, key, core.ErrLedgerNotFound)
	}
	return l, err
}

func (s *LedgerService) MonthOverview(ctx context.Context, key string) (core.MonthOverview, error) {
	l, err := s.Ledger(ctx, key)
	if err != nil {
		return core.MonthOverview{}, err
	}
	return l.Overview(), nil
}

func (s *LedgerService) YearOverview(ctx context.Context, year int) (core.YearOverview, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return core.YearOverview{}, fmt.Errorf("list ledgers: %w", err)
	}
	return core.BuildYearOverview(year, all), nil
}

// SaveRule creates or replaces a rule. A new rule is active and its cursor
// starts at its start date. Replacing a rule keeps the stored cursor: only the
// materializer moves it.
func (s *LedgerService) SaveRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error) {
	existing, err := s.existingRule(ctx, rule.ID)
	if err != nil {
		return core.RecurringRule{}, err
	}
	switch {
	case existing != nil:
		rule.NextExecutionDate = existing.NextExecutionDate
	default:
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		rule.Active = true
		if rule.NextExecutionDate.IsZero() {
			rule.NextExecutionDate = rule.StartDate
		}
	}
	if err := rule.Validate(); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save rule: %w", err)
	}
	if err := s.store.SaveRule(ctx, rule); err != nil {
		return core.RecurringRule{}, fmt.Errorf("save rule %s: %w", rule.ID, err)
	}
	return rule, nil
}

func (s *LedgerService) existingRule(ctx context.Context, id string) (*core.RecurringRule, error) {
	if id == "" {
		return nil, nil
	}
	r, err := s.store.GetRule(ctx, id)
	switch {
	case errors.Is(err, core.ErrRuleNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read rule %s: %w", id, err)
	}
	return &r, nil
}

func (s *LedgerService) Rules(ctx context.Context) ([]core.RecurringRule, error) {
	return s.store.ListRules(ctx)
}

// DeleteRule stops future materialization; entries already generated stay.
func (s *LedgerService) DeleteRule(ctx context.Context, id string) error {
	err := s.store.DeleteRule(ctx, id)
	if errors.Is(err, core.ErrRuleNotFound) {
		return core.NotFound(applog.OpDeleteRule, id, core.ErrRuleNotFound)
	}
	return err
}
