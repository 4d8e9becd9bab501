// Package scheduler writes periodic spreadsheet snapshots of the inventory
// and the audit report to disk.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/export"
	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/metrics"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
)

// StampLayout is appended to exported file names.
const StampLayout = "20060102-150405"

// Source is what a snapshot reads from.
type Source interface {
	Items(ctx context.Context) ([]models.Item, error)
	Report(ctx context.Context) (report.Report, error)
}

// Exporter runs snapshot jobs on a cron schedule.
type Exporter struct {
	cron   *cron.Cron
	src    Source
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewExporter returns an exporter writing into dir, evaluating schedules in loc.
func NewExporter(src Source, dir string, loc *time.Location, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Exporter{
		cron:   cron.New(cron.WithLocation(loc)),
		src:    src,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Start registers the snapshot job under expr (standard 5-field cron) and
// starts the scheduler.
func (e *Exporter) Start(expr string) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	if _, err := e.cron.AddFunc(expr, e.run); err != nil {
		return fmt.Errorf("schedule export %q: %w", expr, err)
	}
	e.logger.Info("starting export scheduler", zap.String("cron", expr), zap.String("dir", e.dir))
	e.cron.Start()
	return nil
}

// Stop stops scheduling and waits for a running job to finish or ctx to end.
func (e *Exporter) Stop(ctx context.Context) {
	e.logger.Info("stopping export scheduler")
	select {
	case <-e.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (e *Exporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	files, err := e.RunOnce(ctx)
	if err != nil {
		metrics.IncScheduledExport("error")
		e.logger.Error("scheduled export failed", zap.Strings("written", files), zap.Error(err))
		return
	}
	metrics.IncScheduledExport("ok")
	e.logger.Info("scheduled export written", zap.Strings("files", files))
}

// RunOnce writes reagents-<stamp>.xlsx and log_report-<stamp>.xlsx. When the
// audit log is corrupt the report file is skipped and the error returned;
// the log is left for the interactive download path to quarantine.
func (e *Exporter) RunOnce(ctx context.Context) ([]string, error) {
	stamp := e.now().Format(StampLayout)
	var written []string

	items, err := e.src.Items(ctx)
	if err != nil {
		return written, fmt.Errorf("list items: %w", err)
	}
	data, err := export.Inventory(items)
	if err != nil {
		return written, err
	}
	path, err := e.write("reagents-"+stamp+".xlsx", data)
	if err != nil {
		return written, err
	}
	written = append(written, path)

	rep, err := e.src.Report(ctx)
	if err != nil {
		if errors.Is(err, inventory.ErrAuditCorrupt) {
			return written, fmt.Errorf("skipped report, audit log unreadable: %w", err)
		}
		return written, fmt.Errorf("build report: %w", err)
	}
	data, err = export.Report(rep)
	if err != nil {
		return written, err
	}
	path, err = e.write("log_report-"+stamp+".xlsx", data)
	if err != nil {
		return written, err
	}
	return append(written, path), nil
}

func (e *Exporter) write(name string, data []byte) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	final := filepath.Join(e.dir, name)
	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename %s: %w", name, err)
	}
	return final, nil
}
