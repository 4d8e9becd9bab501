package repo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/crucial707/labstock/internal/models"
)

var reagentHeader = []string{"name", "quantity"}

// ========================
// REPOSITORY STRUCT
// ========================

// ReagentFileRepo owns the current stock table. The CSV file is loaded once
// into an indexed in-memory table and rewritten after every mutation; mu is
// the single writer lock for the table.
type ReagentFileRepo struct {
	path string

	mu     sync.Mutex
	loaded bool
	items  []models.Item
	index  map[string]int
}

// NewReagentFileRepo returns a repo backed by path, creating the file with
// its header row when it is absent.
func NewReagentFileRepo(path string) (*ReagentFileRepo, error) {
	if err := ensureFile(path, reagentHeader); err != nil {
		return nil, err
	}
	return &ReagentFileRepo{path: path}, nil
}

// Path returns the backing file.
func (r *ReagentFileRepo) Path() string { return r.path }

// ========================
// LIST ALL REAGENTS
// ========================

// List returns every reagent in insertion order.
func (r *ReagentFileRepo) List(_ context.Context) ([]models.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]models.Item, len(r.items))
	copy(out, r.items)
	return out, nil
}

// ========================
// UPSERT BY NAME
// ========================

// Upsert adds delta to the named reagent, creating it when missing, and
// returns the new quantity.
func (r *ReagentFileRepo) Upsert(_ context.Context, name string, delta int) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" || delta <= 0 {
		return 0, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return 0, err
	}

	i, ok := r.index[name]
	if !ok {
		r.items = append(r.items, models.Item{Name: name, Quantity: delta})
		r.index[name] = len(r.items) - 1
		if err := r.persist(); err != nil {
			r.items = r.items[:len(r.items)-1]
			delete(r.index, name)
			return 0, err
		}
		return delta, nil
	}

	prev := r.items[i].Quantity
	if prev > math.MaxInt-delta {
		return 0, fmt.Errorf("%w: quantity overflow for %q", ErrInvalidInput, name)
	}
	r.items[i].Quantity = prev + delta
	if err := r.persist(); err != nil {
		r.items[i].Quantity = prev
		return 0, err
	}
	return r.items[i].Quantity, nil
}

// ========================
// WITHDRAW WITH FLOOR CHECK
// ========================

// Withdraw subtracts amount from the named reagent and returns the new
// quantity. The stored quantity never goes below zero.
func (r *ReagentFileRepo) Withdraw(_ context.Context, name string, amount int) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" || amount <= 0 {
		return 0, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureLoaded(); err != nil {
		return 0, err
	}

	i, ok := r.index[name]
	if !ok {
		return 0, ErrItemNotFound
	}
	prev := r.items[i].Quantity
	if prev < amount {
		return 0, ErrInsufficientStock
	}
	r.items[i].Quantity = prev - amount
	if err := r.persist(); err != nil {
		r.items[i].Quantity = prev
		return 0, err
	}
	return r.items[i].Quantity, nil
}

// Ping reports whether the backing file is reachable.
func (r *ReagentFileRepo) Ping(_ context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// ========================
// FILE HELPERS
// ========================

// ensureLoaded reads the file on first use. A failed load is retried on the
// next call so a repaired file is picked up without a restart.
func (r *ReagentFileRepo) ensureLoaded() error {
	if r.loaded {
		return nil
	}
	items, err := readReagents(r.path)
	if err != nil {
		return err
	}
	r.items = items
	r.index = make(map[string]int, len(items))
	for i, it := range items {
		r.index[it.Name] = i
	}
	r.loaded = true
	return nil
}

func (r *ReagentFileRepo) persist() error {
	rows := make([][]string, 0, len(r.items))
	for _, it := range r.items {
		rows = append(rows, []string{it.Name, strconv.Itoa(it.Quantity)})
	}
	return writeAtomic(r.path, reagentHeader, rows)
}

func readReagents(path string) ([]models.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if err := ensureFile(path, reagentHeader); err != nil {
				return nil, err
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrStorageUnavailable, path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStorageCorrupt, path, err)
	}
	cols, err := columnIndex(header, "name", "quantity")
	if err != nil {
		return nil, err
	}

	var items []models.Item
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrStorageCorrupt, path, err)
		}
		name := field(rec, cols["name"])
		if name == "" {
			continue
		}
		qty, err := strconv.Atoi(field(rec, cols["quantity"]))
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("%w: %s line %d: bad quantity for %q", ErrStorageCorrupt, path, line, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s line %d: duplicate reagent %q", ErrStorageCorrupt, path, line, name)
		}
		seen[name] = true
		items = append(items, models.Item{Name: name, Quantity: qty})
	}
	return items, nil
}
