package inventory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
	"github.com/crucial707/labstock/internal/repo"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.Local)

func newFileService(t *testing.T) (*Service, *repo.ReagentFileRepo, *repo.AuditFileRepo) {
	t.Helper()
	dir := t.TempDir()
	ledger, err := repo.NewReagentFileRepo(filepath.Join(dir, "reagents.csv"))
	if err != nil {
		t.Fatalf("NewReagentFileRepo: %v", err)
	}
	audit, err := repo.NewAuditFileRepo(filepath.Join(dir, "log.csv"))
	if err != nil {
		t.Fatalf("NewAuditFileRepo: %v", err)
	}
	tick := fixedNow
	svc := NewService(ledger, audit, zap.NewNop()).WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	return svc, ledger, audit
}

func TestService_EndToEnd(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, models.RoleAdmin, "Acid", 100); err != nil {
		t.Fatalf("Add: %v", err)
	}
	item, err := svc.Withdraw(ctx, models.RoleUser, "Acid", 30)
	if err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if item.Quantity != 70 {
		t.Errorf("quantity: got %d, want 70", item.Quantity)
	}

	rep, err := svc.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	rows := rep.Rows()
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Entry.Action != models.ActionAddition || rows[0].Entry.Amount != 100 || rows[0].Entry.Role != models.RoleAdmin {
		t.Errorf("row 0: %+v", rows[0])
	}
	if rows[1].Entry.Action != models.ActionWithdrawal || rows[1].Entry.Amount != 30 || rows[1].Entry.Role != models.RoleUser {
		t.Errorf("row 1: %+v", rows[1])
	}
	if rows[2].Kind != report.RowBalance || rows[2].Item != "Acid" || rows[2].Total != 70 {
		t.Errorf("row 2: %+v", rows[2])
	}
}

func TestService_OneAuditEntryPerMutation(t *testing.T) {
	svc, _, audit := newFileService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, models.RoleAdmin, " Ethanol ", 5); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Withdraw(ctx, models.RoleUser, "Ethanol", 2); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}

	entries, err := audit.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	want := []models.LogEntry{
		{Timestamp: fixedNow.Add(time.Second), Role: models.RoleAdmin, Action: models.ActionAddition, ItemName: "Ethanol", Amount: 5},
		{Timestamp: fixedNow.Add(2 * time.Second), Role: models.RoleUser, Action: models.ActionWithdrawal, ItemName: "Ethanol", Amount: 2},
	}
	for i := range want {
		got := entries[i]
		if !got.Timestamp.Equal(want[i].Timestamp) || got.Role != want[i].Role || got.Action != want[i].Action ||
			got.ItemName != want[i].ItemName || got.Amount != want[i].Amount {
			t.Errorf("entry %d: got %+v, want %+v", i, got, want[i])
		}
	}
}

func TestService_FailedWithdrawalsLeaveNoTrace(t *testing.T) {
	svc, ledger, audit := newFileService(t)
	ctx := context.Background()
	if _, err := svc.Add(ctx, models.RoleAdmin, "Acid", 10); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := svc.Withdraw(ctx, models.RoleUser, "Acid", 11); !errors.Is(err, repo.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, models.RoleUser, "Borax", 1); !errors.Is(err, repo.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound, got %v", err)
	}

	items, _ := ledger.List(ctx)
	if len(items) != 1 || items[0].Quantity != 10 {
		t.Errorf("ledger changed: %+v", items)
	}
	entries, _ := audit.ReadAll(ctx)
	if len(entries) != 1 {
		t.Errorf("audit log changed: %+v", entries)
	}
}

func TestService_RoleGate(t *testing.T) {
	svc, ledger, _ := newFileService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, models.RoleUser, "Acid", 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("user add: got %v", err)
	}
	if _, err := svc.Add(ctx, models.RoleUnknown, "Acid", 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("unknown add: got %v", err)
	}
	if _, err := svc.Add(ctx, models.RoleAdmin, "Acid", 1); err != nil {
		t.Fatalf("admin add: %v", err)
	}
	if _, err := svc.Withdraw(ctx, models.RoleAdmin, "Acid", 1); !errors.Is(err, ErrForbidden) {
		t.Errorf("admin withdraw: got %v", err)
	}

	items, _ := ledger.List(ctx)
	if items[0].Quantity != 1 {
		t.Errorf("quantity: got %d, want 1", items[0].Quantity)
	}
}

func TestService_InvalidInput(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()

	if _, err := svc.Add(ctx, models.RoleAdmin, "  ", 1); !errors.Is(err, repo.ErrInvalidInput) {
		t.Errorf("blank name: got %v", err)
	}
	if _, err := svc.Add(ctx, models.RoleAdmin, "Acid", 0); !errors.Is(err, repo.ErrInvalidInput) {
		t.Errorf("zero amount: got %v", err)
	}
}

func TestService_Report_CorruptLog(t *testing.T) {
	svc, ledger, audit := newFileService(t)
	ctx := context.Background()
	if _, err := svc.Add(ctx, models.RoleAdmin, "Acid", 10); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := os.WriteFile(audit.Path(), []byte("timestamp,item_name\nx,y\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := svc.Report(ctx)
	if !errors.Is(err, ErrAuditCorrupt) || !errors.Is(err, repo.ErrStorageCorrupt) {
		t.Fatalf("expected ErrAuditCorrupt, got %v", err)
	}
	items, _ := ledger.List(ctx)
	if len(items) != 1 || items[0].Quantity != 10 {
		t.Errorf("ledger touched: %+v", items)
	}
}

func TestService_Report_CorruptLedgerIsNotAuditCorruption(t *testing.T) {
	svc, ledger, audit := newFileService(t)
	ctx := context.Background()
	entry := models.LogEntry{Timestamp: fixedNow, Role: models.RoleAdmin, Action: models.ActionAddition, ItemName: "Acid", Amount: 10}
	if err := audit.Append(ctx, entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := os.WriteFile(ledger.Path(), []byte("name,quantity\nAcid,notanumber\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := svc.Report(ctx)
	if err == nil {
		t.Fatal("expected error for corrupt ledger")
	}
	if errors.Is(err, ErrAuditCorrupt) {
		t.Fatalf("ledger corruption reported as audit corruption: %v", err)
	}
	if _, err := svc.AuditEntries(ctx); err != nil {
		t.Errorf("audit log should still read cleanly: %v", err)
	}
}

func TestService_RecoverAuditLog(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	dir := t.TempDir()
	ledger, _ := repo.NewReagentFileRepo(filepath.Join(dir, "reagents.csv"))
	audit, _ := repo.NewAuditFileRepo(filepath.Join(dir, "log.csv"))
	svc := NewService(ledger, audit, zap.New(core))
	ctx := context.Background()

	if err := os.WriteFile(audit.Path(), []byte("garbage\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	where, err := svc.RecoverAuditLog(ctx)
	if err != nil {
		t.Fatalf("RecoverAuditLog: %v", err)
	}
	if _, err := os.Stat(where); err != nil {
		t.Errorf("quarantined file missing: %v", err)
	}
	if logs.FilterMessageSnippet("quarantined").Len() != 1 {
		t.Errorf("expected an error-level quarantine log, got %v", logs.All())
	}
	rep, err := svc.Report(ctx)
	if err != nil || len(rep.Groups) != 0 {
		t.Errorf("report after recovery: %+v %v", rep, err)
	}
}

type failingAudit struct{ repo.AuditFileRepo }

func (*failingAudit) Append(context.Context, models.LogEntry) error {
	return repo.ErrStorageUnavailable
}

func TestService_AuditFailureIsSurfaced(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	ledger, _ := repo.NewReagentFileRepo(filepath.Join(t.TempDir(), "reagents.csv"))
	svc := NewService(ledger, &failingAudit{}, zap.New(core))

	item, err := svc.Add(context.Background(), models.RoleAdmin, "Acid", 5)
	if !errors.Is(err, ErrAuditIncomplete) || !errors.Is(err, repo.ErrStorageUnavailable) {
		t.Fatalf("expected ErrAuditIncomplete wrapping ErrStorageUnavailable, got %v", err)
	}
	if item.Quantity != 5 {
		t.Errorf("returned quantity: got %d, want 5", item.Quantity)
	}
	if logs.FilterMessage("audit append failed after ledger mutation").Len() != 1 {
		t.Errorf("expected inconsistency to be logged")
	}
}

type recordingStore struct {
	items    []models.Item
	recorded []models.LogEntry
}

func (s *recordingStore) List(context.Context) ([]models.Item, error) { return s.items, nil }
func (s *recordingStore) Upsert(context.Context, string, int) (int, error) {
	panic("Upsert must not be called when Record is available")
}
func (s *recordingStore) Withdraw(context.Context, string, int) (int, error) {
	panic("Withdraw must not be called when Record is available")
}
func (s *recordingStore) Append(context.Context, models.LogEntry) error {
	panic("Append must not be called when Record is available")
}
func (s *recordingStore) ReadAll(context.Context) ([]models.LogEntry, error) { return s.recorded, nil }
func (s *recordingStore) Reinitialize(context.Context) (string, error)       { return "", nil }
func (s *recordingStore) Record(_ context.Context, e models.LogEntry) (int, error) {
	s.recorded = append(s.recorded, e)
	return 42, nil
}

func TestService_UsesRecorderWhenAvailable(t *testing.T) {
	store := &recordingStore{}
	svc := NewService(store, store, nil).WithClock(func() time.Time { return fixedNow.Add(500 * time.Millisecond) })

	item, err := svc.Add(context.Background(), models.RoleAdmin, "Acid", 2)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.Quantity != 42 || len(store.recorded) != 1 {
		t.Errorf("unexpected result: %+v %+v", item, store.recorded)
	}
	if !store.recorded[0].Timestamp.Equal(fixedNow) {
		t.Errorf("timestamp not truncated to seconds: %v", store.recorded[0].Timestamp)
	}
}
