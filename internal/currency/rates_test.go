package currency

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestHTTPRateProvider_FetchRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/USD":
			fmt.Fprint(w, `{"base_code":"USD","rates":{"USD":1,"EUR":0.92,"JPY":151.37}}`)
		case "/BAD":
			fmt.Fprint(w, `{"rates":`)
		default:
			http.Error(w, "unknown", http.StatusNotFound)
		}
	}))
	defer srv.Close()
	p := NewHTTPRateProvider(srv.URL + "/")

	t.Run("ok", func(t *testing.T) {
		table, err := p.FetchRates(context.Background(), "USD")
		if err != nil {
			t.Fatalf("FetchRates: %v", err)
		}
		if !table.Rates["EUR"].Equal(decimal.RequireFromString("0.92")) {
			t.Errorf("EUR rate = %s", table.Rates["EUR"])
		}
		if table.FetchedAt.IsZero() {
			t.Error("FetchedAt not set")
		}
	})

	for _, base := range []string{"BAD", "XXX"} {
		t.Run("error "+base, func(t *testing.T) {
			if _, err := p.FetchRates(context.Background(), base); err == nil {
				t.Errorf("FetchRates(%s) should fail", base)
			}
		})
	}
}

type countingProvider struct {
	calls atomic.Int32
	delay time.Duration
}

func (c *countingProvider) FetchRates(_ context.Context, base string) (RateTable, error) {
	c.calls.Add(1)
	time.Sleep(c.delay)
	return RateTable{Base: base, Rates: map[string]decimal.Decimal{"EUR": decimal.RequireFromString("0.9")}}, nil
}

func TestCachedProvider_CachesPerBase(t *testing.T) {
	next := &countingProvider{}
	p := NewCachedProvider(next, 8, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.FetchRates(ctx, "USD"); err != nil {
			t.Fatalf("FetchRates: %v", err)
		}
	}
	if _, err := p.FetchRates(ctx, "GBP"); err != nil {
		t.Fatalf("FetchRates: %v", err)
	}
	if got := next.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	if p.Cache().Size() != 2 {
		t.Errorf("cache size = %d, want 2", p.Cache().Size())
	}
}

func TestCachedProvider_DeduplicatesConcurrentFetches(t *testing.T) {
	next := &countingProvider{delay: 50 * time.Millisecond}
	p := NewCachedProvider(next, 8, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.FetchRates(context.Background(), "USD"); err != nil {
				t.Errorf("FetchRates: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := next.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}
}
