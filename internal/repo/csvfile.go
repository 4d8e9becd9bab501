package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ensureFile creates path with a header row when it does not exist yet.
func ensureFile(path string, header []string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create dir for %s: %w", ErrStorageUnavailable, path, err)
	}
	return writeAtomic(path, header, nil)
}

// writeAtomic replaces path with header and rows through a temp file and rename,
// so readers never observe a half-written file.
func writeAtomic(path string, header []string, rows [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", ErrStorageUnavailable, path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrStorageUnavailable, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrStorageUnavailable, path, err)
	}
	return nil
}

// columnIndex maps each required column to its position in header.
// A missing column means the file no longer has the structure we wrote.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	out := make(map[string]int, len(required))
	for _, col := range required {
		i, ok := pos[col]
		if !ok {
			return nil, fmt.Errorf("%w: missing column %q", ErrStorageCorrupt, col)
		}
		out[col] = i
	}
	return out, nil
}

// field returns record[i], or "" for short rows.
func field(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}
