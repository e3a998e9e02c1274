package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
	"bilancio/internal/ledger/memory"
)

// flakyStore fails Batch calls selected by failBatch and delegates the rest.
// Batches selected by lostAck are applied but still reported as failed.
type flakyStore struct {
	*memory.Store
	failBatch func(muts []ledger.Mutation) bool
	lostAck   func(muts []ledger.Mutation) bool
	batches   int
}

var errInjected = errors.New("injected batch failure")

func (f *flakyStore) Batch(ctx context.Context, muts []ledger.Mutation) error {
	f.batches++
	if f.failBatch != nil && f.failBatch(muts) {
		return errInjected
	}
	if f.lostAck != nil && f.lostAck(muts) {
		if err := f.Store.Batch(ctx, muts); err != nil {
			return err
		}
		return errInjected
	}
	return f.Store.Batch(ctx, muts)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ledger.Event
}

func (r *recordingPublisher) PublishLedgerEvent(_ context.Context, ev ledger.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func mustSet(t *testing.T, s ledger.Store, l core.MonthlyLedger) {
	t.Helper()
	if err := s.Set(context.Background(), l); err != nil {
		t.Fatalf("Set(%s): %v", l.Key, err)
	}
}

func mustGet(t *testing.T, s ledger.Store, key string) core.MonthlyLedger {
	t.Helper()
	l, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	return l
}

func usdLedger(key string, limitCents int64) core.MonthlyLedger {
	return core.MonthlyLedger{
		Key:             key,
		BaseCurrency:    "USD",
		Limit:           core.Money{Cents: limitCents},
		CategoryBudgets: map[string]core.Money{"Tech": {Cents: 50000}},
	}
}
