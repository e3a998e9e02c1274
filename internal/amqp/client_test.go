package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"bilancio/internal/core"
	"bilancio/internal/ledger"
)

func TestExponentialBackoff(t *testing.T) {
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for attempt, d := range want {
		if got := exponentialBackoff(attempt); got != d {
			t.Errorf("exponentialBackoff(%d) = %v, want %v", attempt, got, d)
		}
	}
	for _, attempt := range []int{5, 9, 40} {
		if got := exponentialBackoff(attempt); got != 30*time.Second {
			t.Errorf("exponentialBackoff(%d) = %v, want 30s cap", attempt, got)
		}
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want bool
	}{
		"nil":                {nil, false},
		"broker closed":      {fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		"refused":            {errors.New("dial tcp 127.0.0.1:5672: connect: connection refused"), true},
		"eof":                {errors.New("unexpected EOF"), true},
		"broken pipe":        {errors.New("write: broken pipe"), true},
		"channel not open":   {errors.New("Exception (504) Reason: \"channel/connection is not open\""), true},
		"handler rejected":   {errors.New("append journal rows: quota exceeded"), false},
		"invalid event body": {errors.New("decode ledger event: missing id"), false},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	c := &Client{exchangeName: "bilancio", queueName: "ledger_events"}

	if c.isCircuitOpen() {
		t.Fatal("new client should start closed")
	}

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	if c.isCircuitOpen() {
		t.Fatalf("circuit opened after %d failures, threshold is %d", maxFailures-1, maxFailures)
	}
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("circuit should open at the failure threshold")
	}

	// Past the open timeout one trial call is allowed through.
	c.mu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	c.mu.Unlock()
	if c.isCircuitOpen() {
		t.Fatal("circuit should be half-open after the timeout")
	}
	if got := atomic.LoadInt32(&c.state); got != StateHalfOpen {
		t.Fatalf("state = %d, want half-open", got)
	}

	// A failed trial call reopens immediately.
	c.recordFailure()
	if !c.isCircuitOpen() {
		t.Fatal("failed half-open call should reopen the circuit")
	}

	c.recordSuccess()
	if c.isCircuitOpen() || atomic.LoadInt64(&c.failureCount) != 0 {
		t.Error("success should close the circuit and reset the failure count")
	}
}

func TestClient_PublishLedgerEvent_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "bilancio", queueName: "ledger_events"}
	ev := ledger.Event{ID: "ev-1", Type: ledger.EventInstallmentCreated}

	t.Run("publish fails when circuit is open", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now()

		err := client.PublishLedgerEvent(context.Background(), ev)
		if !errors.Is(err, ErrCircuitOpen) {
			t.Errorf("PublishLedgerEvent error = %v, want ErrCircuitOpen", err)
		}
	})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateClosed)
		atomic.StoreInt64(&client.failureCount, 0)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := client.PublishLedgerEvent(ctx, ev); err != context.Canceled {
			t.Errorf("PublishLedgerEvent should return context.Canceled, got: %v", err)
		}
	})
}

func TestLedgerEvent_JSON(t *testing.T) {
	ev := ledger.Event{
		ID:         "ev-42",
		Type:       ledger.EventRecurringMaterialized,
		OccurredAt: time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC),
		Changes: []ledger.Change{{
			Action:      ledger.ActionAdded,
			LedgerKey:   "2024-02",
			EntryType:   core.IncomeType,
			EntryID:     "in-1",
			Date:        core.NewDate(2024, 2, 1),
			Description: "Stipendio (recurring)",
			Amount:      core.Money{Cents: 250000},
			Currency:    "EUR",
			RecurringID: "salary",
		}},
	}

	body, err := EventToJSON(ev)
	if err != nil {
		t.Fatalf("EventToJSON() error = %v", err)
	}
	got, err := EventFromJSON(body)
	if err != nil {
		t.Fatalf("EventFromJSON() error = %v", err)
	}
	if got.ID != ev.ID || got.Type != ev.Type || !got.OccurredAt.Equal(ev.OccurredAt) {
		t.Errorf("header = %+v, want %+v", got, ev)
	}
	if len(got.Changes) != 1 || got.Changes[0].Date.String() != "2024-02-01" || got.Changes[0].Amount.Cents != 250000 {
		t.Errorf("changes = %+v", got.Changes)
	}
}

func TestEventFromJSON_Invalid(t *testing.T) {
	tests := map[string]string{
		"malformed":  `{"id": 12`,
		"missing id": `{"type": "installment.created"}`,
		"bad amount": `{"id": "x", "type": "entry.deleted", "changes": [{"amount": "12.00"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := EventFromJSON([]byte(body)); err == nil {
				t.Error("EventFromJSON() should fail")
			}
		})
	}
}
