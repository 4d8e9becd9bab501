// Package inventory pairs every stock change with its audit entry and builds
// the grouped report from a consistent snapshot of both stores.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/metrics"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
	"github.com/crucial707/labstock/internal/repo"
)

var (
	// ErrForbidden is returned when a role calls an operation reserved for the other role.
	ErrForbidden = errors.New("operation not permitted for role")
	// ErrAuditIncomplete is returned when the ledger changed but the audit entry could not be written.
	ErrAuditIncomplete = errors.New("stock updated but audit entry was not recorded")
	// ErrAuditCorrupt marks an unreadable audit log. Only this error warrants
	// quarantining the log; a corrupt ledger does not.
	ErrAuditCorrupt = errors.New("audit log corrupt")
)

// Ledger is the current-state table of reagents.
type Ledger interface {
	List(ctx context.Context) ([]models.Item, error)
	Upsert(ctx context.Context, name string, delta int) (int, error)
	Withdraw(ctx context.Context, name string, amount int) (int, error)
}

// AuditLog is the append-only history of stock changes.
type AuditLog interface {
	Append(ctx context.Context, e models.LogEntry) error
	ReadAll(ctx context.Context) ([]models.LogEntry, error)
	Reinitialize(ctx context.Context) (string, error)
}

// Recorder applies a stock change and its audit entry atomically. Backends
// that can do this (Postgres) implement it on the same value as Ledger and
// AuditLog.
type Recorder interface {
	Record(ctx context.Context, e models.LogEntry) (int, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Service serializes all mutations so the ledger change and its audit append
// are never interleaved with another writer.
type Service struct {
	ledger   Ledger
	audit    AuditLog
	recorder Recorder
	logger   *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewService wires a ledger and audit log. When both are the same value and
// it implements Recorder, mutations go through Record.
func NewService(ledger Ledger, audit AuditLog, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{ledger: ledger, audit: audit, logger: logger, now: time.Now}
	if rec, ok := ledger.(Recorder); ok && any(ledger) == any(audit) {
		s.recorder = rec
	}
	return s
}

// WithClock replaces the timestamp source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Items returns the ledger in storage order.
func (s *Service) Items(ctx context.Context) ([]models.Item, error) {
	return s.ledger.List(ctx)
}

// Add increments a reagent's stock on behalf of an admin.
func (s *Service) Add(ctx context.Context, role models.Role, name string, amount int) (models.Item, error) {
	if role != models.RoleAdmin {
		return models.Item{}, ErrForbidden
	}
	return s.apply(ctx, models.LogEntry{Role: role, Action: models.ActionAddition, ItemName: name, Amount: amount})
}

// Withdraw decrements a reagent's stock on behalf of a user.
func (s *Service) Withdraw(ctx context.Context, role models.Role, name string, amount int) (models.Item, error) {
	if role != models.RoleUser {
		return models.Item{}, ErrForbidden
	}
	return s.apply(ctx, models.LogEntry{Role: role, Action: models.ActionWithdrawal, ItemName: name, Amount: amount})
}

func (s *Service) apply(ctx context.Context, e models.LogEntry) (models.Item, error) {
	e.ItemName = strings.TrimSpace(e.ItemName)
	if e.ItemName == "" || e.Amount <= 0 {
		return models.Item{}, repo.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e.Timestamp = s.now().Truncate(time.Second)

	if s.recorder != nil {
		qty, err := s.recorder.Record(ctx, e)
		if err != nil {
			return models.Item{}, err
		}
		s.recorded(e, qty)
		return models.Item{Name: e.ItemName, Quantity: qty}, nil
	}

	var (
		qty int
		err error
	)
	switch e.Action {
	case models.ActionAddition:
		qty, err = s.ledger.Upsert(ctx, e.ItemName, e.Amount)
	case models.ActionWithdrawal:
		qty, err = s.ledger.Withdraw(ctx, e.ItemName, e.Amount)
	default:
		return models.Item{}, fmt.Errorf("%w: unknown action %q", repo.ErrInvalidInput, e.Action)
	}
	if err != nil {
		return models.Item{}, err
	}

	// The ledger has changed. A failure here leaves a stock change without
	// history; it is surfaced, never swallowed.
	if err := s.audit.Append(ctx, e); err != nil {
		metrics.AuditInconsistencies.Inc()
		s.logger.Error("audit append failed after ledger mutation",
			zap.String("action", string(e.Action)),
			zap.String("item", e.ItemName),
			zap.Int("amount", e.Amount),
			zap.String("role", string(e.Role)),
			zap.Int("quantity", qty),
			zap.Error(err))
		return models.Item{Name: e.ItemName, Quantity: qty}, fmt.Errorf("%w: %w", ErrAuditIncomplete, err)
	}

	s.recorded(e, qty)
	return models.Item{Name: e.ItemName, Quantity: qty}, nil
}

func (s *Service) recorded(e models.LogEntry, qty int) {
	metrics.IncStockMutation(string(e.Action))
	s.logger.Info("stock recorded",
		zap.String("action", string(e.Action)),
		zap.String("item", e.ItemName),
		zap.Int("amount", e.Amount),
		zap.String("role", string(e.Role)),
		zap.Int("quantity", qty))
}

// AuditEntries returns the raw audit log in append order.
func (s *Service) AuditEntries(ctx context.Context) ([]models.LogEntry, error) {
	entries, err := s.audit.ReadAll(ctx)
	if err != nil {
		return nil, auditReadError(err)
	}
	return entries, nil
}

func auditReadError(err error) error {
	if errors.Is(err, repo.ErrStorageCorrupt) {
		return fmt.Errorf("%w: %w", ErrAuditCorrupt, err)
	}
	return fmt.Errorf("read audit log: %w", err)
}

// Report builds the grouped report from one snapshot of log and ledger.
// An unreadable log yields ErrAuditCorrupt; ledger failures never do.
func (s *Service) Report(ctx context.Context) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.audit.ReadAll(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrStorageCorrupt) {
			metrics.IncReportBuild("corrupt")
		} else {
			metrics.IncReportBuild("error")
		}
		return report.Report{}, auditReadError(err)
	}
	items, err := s.ledger.List(ctx)
	if err != nil {
		metrics.IncReportBuild("error")
		return report.Report{}, fmt.Errorf("read ledger: %w", err)
	}

	metrics.IncReportBuild("ok")
	return report.Build(entries, report.Balances(items)), nil
}

// RecoverAuditLog quarantines the current audit log and starts an empty
// one. It logs at error level so operators notice the quarantined data.
func (s *Service) RecoverAuditLog(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	where, err := s.audit.Reinitialize(ctx)
	if err != nil {
		s.logger.Error("audit log reinitialization failed", zap.Error(err))
		return where, err
	}
	metrics.AuditQuarantines.Inc()
	s.logger.Error("corrupt audit log quarantined; a fresh log was started",
		zap.String("quarantined_to", where))
	return where, nil
}

// Ping checks every backing store that can be pinged.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.ledger.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	if p, ok := s.audit.(pinger); ok && any(s.audit) != any(s.ledger) {
		if err := p.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
