package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/crucial707/labstock/internal/models"
)

// pqCheckViolation is the SQLSTATE raised when quantity >= 0 would be broken.
const pqCheckViolation = "23514"

// QuarantineTable receives audit rows moved aside by Reinitialize.
const QuarantineTable = "audit_log_quarantine"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ==========================
// PGStore
// ==========================

// PGStore keeps both the reagent table and the audit log in Postgres.
// Row locks replace the process-wide writer lock of the file backend, and
// Record pairs a stock mutation with its audit row in one transaction.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore returns a new PGStore.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// ==========================
// Ledger
// ==========================

// List returns every reagent in insertion order.
func (s *PGStore) List(ctx context.Context) ([]models.Item, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, quantity FROM reagents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list reagents: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.Name, &it.Quantity); err != nil {
			return nil, fmt.Errorf("%w: scan reagent: %w", ErrStorageCorrupt, err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list reagents: %w", ErrStorageUnavailable, err)
	}
	return items, nil
}

// Upsert adds delta to the named reagent, creating it when missing.
func (s *PGStore) Upsert(ctx context.Context, name string, delta int) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" || delta <= 0 {
		return 0, ErrInvalidInput
	}
	return upsert(ctx, s.DB, name, delta)
}

// Withdraw subtracts amount from the named reagent inside a transaction.
func (s *PGStore) Withdraw(ctx context.Context, name string, amount int) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" || amount <= 0 {
		return 0, ErrInvalidInput
	}
	var qty int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		qty, err = withdraw(ctx, tx, name, amount)
		return err
	})
	return qty, err
}

// ==========================
// Audit log
// ==========================

// Append records an audit entry.
func (s *PGStore) Append(ctx context.Context, e models.LogEntry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	return appendEntry(ctx, s.DB, e)
}

// ReadAll returns every audit entry in append order.
func (s *PGStore) ReadAll(ctx context.Context) ([]models.LogEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT created_at, actor_role, action_kind, item_name, amount FROM audit_log ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: read audit log: %w", ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var entries []models.LogEntry
	for rows.Next() {
		var (
			e      models.LogEntry
			role   string
			action string
		)
		if err := rows.Scan(&e.Timestamp, &role, &action, &e.ItemName, &e.Amount); err != nil {
			return nil, fmt.Errorf("%w: scan audit row: %w", ErrStorageCorrupt, err)
		}
		e.Role = models.ParseRole(role)
		e.Action = models.Action(action)
		if !e.Action.Valid() {
			return nil, fmt.Errorf("%w: unknown action %q", ErrStorageCorrupt, action)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: read audit log: %w", ErrStorageUnavailable, err)
	}
	return entries, nil
}

// Reinitialize moves all audit rows into the quarantine table and leaves an
// empty audit_log behind.
func (s *PGStore) Reinitialize(ctx context.Context) (string, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audit_log_quarantine (created_at, actor_role, action_kind, item_name, amount, quarantined_at)
			 SELECT created_at, actor_role, action_kind, item_name, amount, NOW() FROM audit_log`); err != nil {
			return fmt.Errorf("%w: quarantine audit log: %w", ErrStorageUnavailable, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM audit_log`); err != nil {
			return fmt.Errorf("%w: clear audit log: %w", ErrStorageUnavailable, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return QuarantineTable, nil
}

// ==========================
// Paired mutation
// ==========================

// Record applies the stock change described by e and inserts e into the
// audit log in the same transaction. It returns the new quantity.
func (s *PGStore) Record(ctx context.Context, e models.LogEntry) (int, error) {
	if err := validateEntry(e); err != nil {
		return 0, err
	}
	var qty int
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		switch e.Action {
		case models.ActionAddition:
			qty, err = upsert(ctx, tx, e.ItemName, e.Amount)
		case models.ActionWithdrawal:
			qty, err = withdraw(ctx, tx, e.ItemName, e.Amount)
		}
		if err != nil {
			return err
		}
		return appendEntry(ctx, tx, e)
	})
	return qty, err
}

// Ping checks the database connection.
func (s *PGStore) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *PGStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrStorageUnavailable, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func upsert(ctx context.Context, q querier, name string, delta int) (int, error) {
	var qty int
	err := q.QueryRowContext(ctx,
		`INSERT INTO reagents (name, quantity) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET quantity = reagents.quantity + EXCLUDED.quantity
		 RETURNING quantity`,
		name, delta,
	).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("%w: upsert reagent: %w", ErrStorageUnavailable, err)
	}
	return qty, nil
}

func withdraw(ctx context.Context, q querier, name string, amount int) (int, error) {
	var current int
	err := q.QueryRowContext(ctx,
		`SELECT quantity FROM reagents WHERE name = $1 FOR UPDATE`, name,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrItemNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("%w: lock reagent: %w", ErrStorageUnavailable, err)
	}
	if current < amount {
		return 0, ErrInsufficientStock
	}

	var qty int
	err = q.QueryRowContext(ctx,
		`UPDATE reagents SET quantity = quantity - $2 WHERE name = $1 RETURNING quantity`,
		name, amount,
	).Scan(&qty)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqCheckViolation {
			return 0, ErrInsufficientStock
		}
		return 0, fmt.Errorf("%w: withdraw reagent: %w", ErrStorageUnavailable, err)
	}
	return qty, nil
}

func appendEntry(ctx context.Context, q querier, e models.LogEntry) error {
	role := e.Role
	if role == "" {
		role = models.RoleUnknown
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO audit_log (created_at, actor_role, action_kind, item_name, amount) VALUES ($1, $2, $3, $4, $5)`,
		ts.Truncate(time.Second), string(role), string(e.Action), e.ItemName, e.Amount,
	)
	if err != nil {
		return fmt.Errorf("%w: append audit entry: %w", ErrStorageUnavailable, err)
	}
	return nil
}
