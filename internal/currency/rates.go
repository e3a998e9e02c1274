// Package currency converts ledger amounts into a display currency. Stored
// amounts are never rewritten; conversion only happens on the way out.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"bilancio/internal/cache"
)

// RateTable maps currency codes to the number of units equal to one unit of Base.
type RateTable struct {
	Base      string                     `json:"base_code"`
	Rates     map[string]decimal.Decimal `json:"rates"`
	FetchedAt time.Time                  `json:"-"`
}

// Rate returns the multiplier for code. The pivot currency is always 1.
func (t RateTable) Rate(code string) (decimal.Decimal, bool) {
	if code == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[code]
	if !ok || !r.IsPositive() {
		return decimal.Zero, false
	}
	return r, true
}

type RateProvider interface {
	FetchRates(ctx context.Context, base string) (RateTable, error)
}

// HTTPRateProvider fetches tables from an exchangerate-api style endpoint:
// GET {baseURL}/{base} returning {"base_code": "...", "rates": {...}}.
type HTTPRateProvider struct {
	baseURL string
	client  *http.Client
}

const fetchTimeout = 10 * time.Second

func NewHTTPRateProvider(baseURL string) *HTTPRateProvider {
	return &HTTPRateProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: fetchTimeout},
	}
}

// FetchRates makes a single attempt; callers treat any error as a stale table.
func (p *HTTPRateProvider) FetchRates(ctx context.Context, base string) (RateTable, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return RateTable{}, fmt.Errorf("build rates request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return RateTable{}, fmt.Errorf("rates request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RateTable{}, fmt.Errorf("rates API returned status %d", resp.StatusCode)
	}

	var table RateTable
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return RateTable{}, fmt.Errorf("decode rates response: %w", err)
	}
	if table.Base == "" {
		table.Base = base
	}
	if table.Base != base {
		return RateTable{}, fmt.Errorf("rates API answered for %s, asked %s", table.Base, base)
	}
	table.FetchedAt = time.Now().UTC()

	slog.DebugContext(ctx, "Fetched rate table", "base", base, "rates", len(table.Rates))
	return table, nil
}

// CachedProvider keeps recent tables per base code and collapses concurrent
// fetches of the same base into one upstream request.
type CachedProvider struct {
	next  RateProvider
	cache *cache.LRUCache[RateTable]
	group singleflight.Group
}

func NewCachedProvider(next RateProvider, size int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: cache.NewLRUCache[RateTable](size, ttl),
	}
}

// Cache exposes the underlying cache so a cache.Manager can purge it.
func (p *CachedProvider) Cache() *cache.LRUCache[RateTable] {
	return p.cache
}

func (p *CachedProvider) FetchRates(ctx context.Context, base string) (RateTable, error) {
	if t, ok := p.cache.Get(base); ok {
		return t, nil
	}

	v, err, shared := p.group.Do(base, func() (any, error) {
		if t, ok := p.cache.Get(base); ok {
			return t, nil
		}
		t, err := p.next.FetchRates(ctx, base)
		if err != nil {
			return RateTable{}, err
		}
		p.cache.Set(base, t)
		return t, nil
	})
	if err != nil {
		return RateTable{}, err
	}
	if shared {
		slog.DebugContext(ctx, "Shared in-flight rate fetch", "base", base)
	}
	return v.(RateTable), nil
}
