package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/crucial707/labstock/internal/models"
)

var auditHeader = []string{"timestamp", "actor_role", "action_kind", "item_name", "amount"}

// AuditFileRepo persists audit log entries as an append-only CSV file.
type AuditFileRepo struct {
	path string
	mu   sync.Mutex

	// Now stamps quarantined files; replaced in tests.
	Now func() time.Time
}

// NewAuditFileRepo returns a new AuditFileRepo, creating the file with its
// header row when it is absent.
func NewAuditFileRepo(path string) (*AuditFileRepo, error) {
	if err := ensureFile(path, auditHeader); err != nil {
		return nil, err
	}
	return &AuditFileRepo{path: path, Now: time.Now}, nil
}

// Path returns the backing file.
func (r *AuditFileRepo) Path() string { return r.path }

// Append records an audit entry at the end of the log.
func (r *AuditFileRepo) Append(_ context.Context, e models.LogEntry) error {
	if err := validateEntry(e); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ensureFile(r.path, auditHeader); err != nil {
		return err
	}
	f, err := os.OpenFile(r.path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, r.path, err)
	}
	if err := terminateLastLine(f); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", ErrStorageUnavailable, r.path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(entryRecord(e)); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", ErrStorageUnavailable, r.path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("%w: append %s: %w", ErrStorageUnavailable, r.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorageUnavailable, r.path, err)
	}
	return nil
}

// ReadAll returns every entry in append order. Columns are located by
// header name; a missing column or an unparsable row yields ErrStorageCorrupt.
func (r *AuditFileRepo) ReadAll(_ context.Context) ([]models.LogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ensureFile(r.path, auditHeader)
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, r.path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		// An empty file has lost its header too.
		return nil, fmt.Errorf("%w: %s: read header: %w", ErrStorageCorrupt, r.path, err)
	}
	cols, err := columnIndex(header, auditHeader...)
	if err != nil {
		return nil, err
	}

	var entries []models.LogEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStorageCorrupt, r.path, err)
		}
		if blankRecord(rec) {
			continue
		}
		e, err := parseEntry(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %w", ErrStorageCorrupt, r.path, line, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Reinitialize moves the current file aside to <path>.corrupt-<unix> and
// starts a fresh log with only the header row. It returns the quarantine
// path, or "" when there was no file to move.
func (r *AuditFileRepo) Reinitialize(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var quarantine string
	if _, err := os.Stat(r.path); err == nil {
		quarantine = fmt.Sprintf("%s.corrupt-%d", r.path, r.Now().Unix())
		if err := os.Rename(r.path, quarantine); err != nil {
			return "", fmt.Errorf("%w: quarantine %s: %w", ErrStorageUnavailable, r.path, err)
		}
	}
	if err := ensureFile(r.path, auditHeader); err != nil {
		return quarantine, err
	}
	return quarantine, nil
}

// Ping reports whether the backing file is reachable.
func (r *AuditFileRepo) Ping(_ context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func validateEntry(e models.LogEntry) error {
	if strings.TrimSpace(e.ItemName) == "" || e.Amount <= 0 {
		return ErrInvalidInput
	}
	if !e.Action.Valid() {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidInput, e.Action)
	}
	return nil
}

func entryRecord(e models.LogEntry) []string {
	role := e.Role
	if role == "" {
		role = models.RoleUnknown
	}
	return []string{
		e.Timestamp.Format(models.TimestampLayout),
		string(role),
		string(e.Action),
		e.ItemName,
		strconv.Itoa(e.Amount),
	}
}

func parseEntry(rec []string, cols map[string]int) (models.LogEntry, error) {
	ts, err := time.ParseInLocation(models.TimestampLayout, field(rec, cols["timestamp"]), time.Local)
	if err != nil {
		return models.LogEntry{}, fmt.Errorf("bad timestamp: %w", err)
	}
	action := models.Action(field(rec, cols["action_kind"]))
	if !action.Valid() {
		return models.LogEntry{}, fmt.Errorf("unknown action %q", action)
	}
	name := field(rec, cols["item_name"])
	if name == "" {
		return models.LogEntry{}, errors.New("empty item name")
	}
	amount, err := strconv.Atoi(field(rec, cols["amount"]))
	if err != nil || amount <= 0 {
		return models.LogEntry{}, fmt.Errorf("bad amount %q", field(rec, cols["amount"]))
	}
	return models.LogEntry{
		Timestamp: ts,
		Role:      models.ParseRole(field(rec, cols["actor_role"])),
		Action:    action,
		ItemName:  name,
		Amount:    amount,
	}, nil
}

// terminateLastLine writes a newline when the file does not already end
// with one, so an appended record never joins a hand-edited last line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

func blankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
