package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

// Store keeps ledgers and rules in process memory. Batches are staged on an
// overlay and swapped in under the lock, so they are all-or-nothing.
type Store struct {
	mu      sync.Mutex
	ledgers map[string]core.MonthlyLedger
	rules   map[string]core.RecurringRule
}

var (
	_ ledger.Store     = (*Store)(nil)
	_ ledger.RuleStore = (*Store)(nil)
)

func New() *Store {
	return &Store{
		ledgers: make(map[string]core.MonthlyLedger),
		rules:   make(map[string]core.RecurringRule),
	}
}

// Seed is the on-disk shape accepted by NewFromFile.
type Seed struct {
	Ledgers []core.MonthlyLedger `json:"ledgers"`
	Rules   []core.RecurringRule `json:"rules"`
}

// NewFromFile seeds a store from a JSON file. A missing file yields an empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	for _, l := range seed.Ledgers {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("seed ledger %s: %w", l.Key, err)
		}
		s.ledgers[l.Key] = l.Clone()
	}
	for _, r := range seed.Rules {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("seed rule %s: %w", r.ID, err)
		}
		s.rules[r.ID] = r
	}
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) (core.MonthlyLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[key]
	if !ok {
		return core.MonthlyLedger{}, core.ErrLedgerNotFound
	}
	return l.Clone(), nil
}

func (s *Store) Set(_ context.Context, l core.MonthlyLedger) error {
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.ledgers[l.Key]; ok && existing.BaseCurrency != l.BaseCurrency {
		return core.ErrBaseCurrencyImmutable
	}
	s.ledgers[l.Key] = l.Clone()
	return nil
}

func (s *Store) UpdateFields(_ context.Context, key string, patch ledger.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ledgers[key]
	if !ok {
		return core.ErrLedgerNotFound
	}
	updated, err := ledger.ApplyPatch(l.Clone(), patch)
	if err != nil {
		return err
	}
	s.ledgers[key] = updated
	return nil
}

func (s *Store) Batch(_ context.Context, muts []ledger.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &overlay{
		store:   s,
		ledgers: map[string]core.MonthlyLedger{},
		rules:   map[string]core.RecurringRule{},
	}
	if err := ledger.ApplyBatch(tx, muts); err != nil {
		return err
	}
	for k, l := range tx.ledgers {
		s.ledgers[k] = l
	}
	for id, r := range tx.rules {
		s.rules[id] = r
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]core.MonthlyLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.MonthlyLedger, 0, len(s.ledgers))
	for _, l := range s.ledgers {
		out = append(out, l.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Store) ListRules(_ context.Context) ([]core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.RecurringRule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetRule(_ context.Context, id string) (core.RecurringRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return core.RecurringRule{}, core.ErrRuleNotFound
	}
	return r, nil
}

func (s *Store) SaveRule(_ context.Context, r core.RecurringRule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.ID] = r
	return nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return core.ErrRuleNotFound
	}
	delete(s.rules, id)
	return nil
}

// overlay stages a batch; reads fall through to the committed maps.
type overlay struct {
	store   *Store
	ledgers map[string]core.MonthlyLedger
	rules   map[string]core.RecurringRule
}

func (o *overlay) Ledger(key string) (core.MonthlyLedger, bool, error) {
	if l, ok := o.ledgers[key]; ok {
		return l.Clone(), true, nil
	}
	l, ok := o.store.ledgers[key]
	if !ok {
		return core.MonthlyLedger{}, false, nil
	}
	return l.Clone(), true, nil
}

func (o *overlay) PutLedger(l core.MonthlyLedger) error {
	o.ledgers[l.Key] = l
	return nil
}

func (o *overlay) Rule(id string) (core.RecurringRule, bool, error) {
	if r, ok := o.rules[id]; ok {
		return r, true, nil
	}
	r, ok := o.store.rules[id]
	return r, ok, nil
}

func (o *overlay) PutRule(r core.RecurringRule) error {
	o.rules[r.ID] = r
	return nil
}
