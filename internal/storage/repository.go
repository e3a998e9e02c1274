package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bilancio/internal/core"
	"bilancio/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores every ledger and rule as one JSON document row.
// A batch is one SQL transaction, which gives the all-or-nothing semantics
// the engine relies on.
type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ ledger.Store     = (*SQLiteRepository)(nil)
	_ ledger.RuleStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway and this avoids
	// SQLITE_BUSY when a deferred transaction upgrades to a write lock.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func getLedger(ctx context.Context, q queryer, key string) (core.MonthlyLedger, bool, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM ledgers WHERE key = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MonthlyLedger{}, false, nil
	}
	if err != nil {
		return core.MonthlyLedger{}, false, fmt.Errorf("select ledger %s: %w", key, err)
	}
	var l core.MonthlyLedger
	if err := json.Unmarshal([]byte(doc), &l); err != nil {
		return core.MonthlyLedger{}, false, fmt.Errorf("decode ledger %s: %w", key, err)
	}
	return l, true, nil
}

func putLedger(ctx context.Context, q queryer, l core.MonthlyLedger) error {
	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode ledger %s: %w", l.Key, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO ledgers (key, base_currency, doc) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = CURRENT_TIMESTAMP`,
		l.Key, l.BaseCurrency, string(doc))
	if err != nil {
		return fmt.Errorf("upsert ledger %s: %w", l.Key, err)
	}
	return nil
}

func getRule(ctx context.Context, q queryer, id string) (core.RecurringRule, bool, error) {
	var doc string
	err := q.QueryRowContext(ctx, `SELECT doc FROM recurring_rules WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, false, nil
	}
	if err != nil {
		return core.RecurringRule{}, false, fmt.Errorf("select rule %s: %w", id, err)
	}
	var rule core.RecurringRule
	if err := json.Unmarshal([]byte(doc), &rule); err != nil {
		return core.RecurringRule{}, false, fmt.Errorf("decode rule %s: %w", id, err)
	}
	return rule, true, nil
}

func putRule(ctx context.Context, q queryer, rule core.RecurringRule) error {
	doc, err := json.Marshal(rule)
	if err != nil {
		return fmt.Errorf("encode rule %s: %w", rule.ID, err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO recurring_rules (id, next_execution_date, active, doc) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			next_execution_date = excluded.next_execution_date,
			active = excluded.active,
			doc = excluded.doc,
			updated_at = CURRENT_TIMESTAMP`,
		rule.ID, rule.Cursor().String(), rule.Active, string(doc))
	if err != nil {
		return fmt.Errorf("upsert rule %s: %w", rule.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (core.MonthlyLedger, error) {
	l, found, err := getLedger(ctx, r.db, key)
	if err != nil {
		return core.MonthlyLedger{}, err
	}
	if !found {
		return core.MonthlyLedger{}, core.ErrLedgerNotFound
	}
	return l, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, l core.MonthlyLedger) error {
	if err := l.Validate(); err != nil {
		return err
	}
	return r.inTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := getLedger(ctx, tx, l.Key)
		if err != nil {
			return err
		}
		if found && existing.BaseCurrency != l.BaseCurrency {
			return core.ErrBaseCurrencyImmutable
		}
		return putLedger(ctx, tx, l)
	})
}

func (r *SQLiteRepository) UpdateFields(ctx context.Context, key string, patch ledger.Patch) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		l, found, err := getLedger(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return core.ErrLedgerNotFound
		}
		updated, err := ledger.ApplyPatch(l, patch)
		if err != nil {
			return err
		}
		return putLedger(ctx, tx, updated)
	})
}

func (r *SQLiteRepository) Batch(ctx context.Context, muts []ledger.Mutation) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		return ledger.ApplyBatch(&sqlTx{ctx: ctx, tx: tx}, muts)
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Batch committed to SQLite", "mutations", len(muts))
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]core.MonthlyLedger, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM ledgers ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	var out []core.MonthlyLedger
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		var l core.MonthlyLedger
		if err := json.Unmarshal([]byte(doc), &l); err != nil {
			return nil, fmt.Errorf("decode ledger: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT doc FROM recurring_rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		var rule core.RecurringRule
		if err := json.Unmarshal([]byte(doc), &rule); err != nil {
			return nil, fmt.Errorf("decode rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetRule(ctx context.Context, id string) (core.RecurringRule, error) {
	rule, found, err := getRule(ctx, r.db, id)
	if err != nil {
		return core.RecurringRule{}, err
	}
	if !found {
		return core.RecurringRule{}, core.ErrRuleNotFound
	}
	return rule, nil
}

func (r *SQLiteRepository) SaveRule(ctx context.Context, rule core.RecurringRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	if err := putRule(ctx, r.db, rule); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Recurring rule saved to SQLite",
		"id", rule.ID,
		"description", rule.Description,
		"next_execution_date", rule.Cursor().String())
	return nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n == 0 {
		return core.ErrRuleNotFound
	}
	return nil
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// sqlTx adapts a *sql.Tx to ledger.Tx; reads see the transaction's own writes.
type sqlTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqlTx) Ledger(key string) (core.MonthlyLedger, bool, error) {
	return getLedger(t.ctx, t.tx, key)
}

func (t *sqlTx) PutLedger(l core.MonthlyLedger) error {
	return putLedger(t.ctx, t.tx, l)
}

func (t *sqlTx) Rule(id string) (core.RecurringRule, bool, error) {
	return getRule(t.ctx, t.tx, id)
}

func (t *sqlTx) PutRule(rule core.RecurringRule) error {
	return putRule(t.ctx, t.tx, rule)
}
