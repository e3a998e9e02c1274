package cli

import (
	"context"
	"testing"

	"bilancio/internal/backend"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/ledger/memory"
	applog "bilancio/internal/log"
	"bilancio/internal/services"
)

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger(applog.ComponentWorker)
	if got := logger.Component(); got != applog.ComponentWorker {
		t.Errorf("Component() = %q, want %q", got, applog.ComponentWorker)
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name       string
		cutoff     string
		wantCutoff services.CutoffPolicy
		wantErr    bool
	}{
		{name: "default", cutoff: "", wantCutoff: services.CutoffMonthStart},
		{name: "month", cutoff: "month", wantCutoff: services.CutoffMonthStart},
		{name: "day", cutoff: "day", wantCutoff: services.CutoffInclusive},
		{name: "unknown", cutoff: "week", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{DefaultCurrency: "EUR", RecurringCutoff: tt.cutoff}
			eng, err := NewEngine(cfg, &backend.BackendResult{Store: memory.New()})
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if eng.Cutoff != tt.wantCutoff {
				t.Errorf("Cutoff = %v, want %v", eng.Cutoff, tt.wantCutoff)
			}
		})
	}
}

func TestNewEngine_SharesStore(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{DefaultCurrency: "EUR", RecurringCutoff: "month"}
	eng, err := NewEngine(cfg, &backend.BackendResult{Store: memory.New()})
	if err != nil {
		t.Fatal(err)
	}

	res, err := eng.Splitter.Split(ctx, services.InstallmentRequest{
		Amount:      core.Money{Cents: 600},
		Description: "Bike",
		Category:    "Sport",
		Periods:     2,
		AnchorDate:  core.NewDate(2025, 3, 10),
	})
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	l, err := eng.Ledgers.Ledger(ctx, res.Entries[1].LedgerKey)
	if err != nil {
		t.Fatalf("Ledger() error = %v", err)
	}
	if l.BaseCurrency != "EUR" || len(l.Expenses) != 1 {
		t.Errorf("ledger %s = %s with %d expenses, want EUR with 1", l.Key, l.BaseCurrency, len(l.Expenses))
	}
}

func TestSignalContext_Cancel(t *testing.T) {
	ctx, cancel := SignalContext(applog.New(applog.DefaultConfig()))
	cancel()
	<-ctx.Done()
}
