package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
	"github.com/crucial707/labstock/internal/repo"
)

type fakeSource struct {
	items     []models.Item
	reportErr error
}

func (f fakeSource) Items(context.Context) ([]models.Item, error) { return f.items, nil }

func (f fakeSource) Report(context.Context) (report.Report, error) {
	if f.reportErr != nil {
		return report.Report{}, f.reportErr
	}
	return report.Build(nil, report.Balances(f.items)), nil
}

func newExporter(t *testing.T, src Source) *Exporter {
	t.Helper()
	e := NewExporter(src, filepath.Join(t.TempDir(), "exports"), time.UTC, zap.NewNop())
	e.now = func() time.Time { return time.Date(2024, 7, 1, 20, 0, 0, 0, time.UTC) }
	return e
}

func TestRunOnce_WritesBothFiles(t *testing.T) {
	e := newExporter(t, fakeSource{items: []models.Item{{Name: "Acid", Quantity: 3}}})

	files, err := e.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	want := []string{
		filepath.Join(e.dir, "reagents-20240701-200000.xlsx"),
		filepath.Join(e.dir, "log_report-20240701-200000.xlsx"),
	}
	if len(files) != 2 || files[0] != want[0] || files[1] != want[1] {
		t.Fatalf("files: %v", files)
	}
	for _, f := range files {
		if st, err := os.Stat(f); err != nil || st.Size() == 0 {
			t.Errorf("%s: %v", f, err)
		}
	}
	leftovers, _ := filepath.Glob(filepath.Join(e.dir, ".*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestRunOnce_CorruptLogSkipsReport(t *testing.T) {
	e := newExporter(t, fakeSource{reportErr: fmt.Errorf("%w: %w", inventory.ErrAuditCorrupt, repo.ErrStorageCorrupt)})

	files, err := e.RunOnce(context.Background())
	if !errors.Is(err, inventory.ErrAuditCorrupt) {
		t.Fatalf("expected ErrAuditCorrupt, got %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "reagents-20240701-200000.xlsx" {
		t.Errorf("files: %v", files)
	}
}

func TestStart_RejectsBadCronExpr(t *testing.T) {
	e := newExporter(t, fakeSource{})
	if err := e.Start("every tuesday"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestStartStop(t *testing.T) {
	e := newExporter(t, fakeSource{})
	if err := e.Start("0 20 * * *"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e.Stop(ctx)
}
