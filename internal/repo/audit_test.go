package repo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/crucial707/labstock/internal/models"
)

func newAuditRepo(t *testing.T) *AuditFileRepo {
	t.Helper()
	r, err := NewAuditFileRepo(filepath.Join(t.TempDir(), "log.csv"))
	if err != nil {
		t.Fatalf("NewAuditFileRepo: %v", err)
	}
	return r
}

func TestAuditFileRepo_AppendThenReadAll(t *testing.T) {
	r := newAuditRepo(t)
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 9, 30, 15, 0, time.Local)

	entries := []models.LogEntry{
		{Timestamp: t1, Role: models.RoleAdmin, Action: models.ActionAddition, ItemName: "Acid", Amount: 100},
		{Timestamp: t1.Add(time.Minute), Role: models.RoleUser, Action: models.ActionWithdrawal, ItemName: "Acid, 1M", Amount: 30},
	}
	for _, e := range entries {
		if err := r.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for i := range entries {
		if !got[i].Timestamp.Equal(entries[i].Timestamp) || got[i].Role != entries[i].Role ||
			got[i].Action != entries[i].Action || got[i].ItemName != entries[i].ItemName ||
			got[i].Amount != entries[i].Amount {
			t.Errorf("entry %d: got %+v, want %+v", i, got[i], entries[i])
		}
	}

	data, _ := os.ReadFile(r.Path())
	if !strings.HasPrefix(string(data), "timestamp,actor_role,action_kind,item_name,amount\n2024-03-01 09:30:15,admin,Addition,Acid,100\n") {
		t.Errorf("unexpected file content: %q", data)
	}
}

func TestAuditFileRepo_Append_RejectsInvalid(t *testing.T) {
	r := newAuditRepo(t)
	ctx := context.Background()

	bad := []models.LogEntry{
		{Action: models.ActionAddition, ItemName: "", Amount: 1},
		{Action: models.ActionAddition, ItemName: "Acid", Amount: 0},
		{Action: "Spill", ItemName: "Acid", Amount: 1},
	}
	for _, e := range bad {
		if err := r.Append(ctx, e); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Append(%+v): expected ErrInvalidInput, got %v", e, err)
		}
	}
	got, _ := r.ReadAll(ctx)
	if len(got) != 0 {
		t.Errorf("expected no entries, got %+v", got)
	}
}

func TestAuditFileRepo_RecreatesMissingFile(t *testing.T) {
	r := newAuditRepo(t)
	ctx := context.Background()
	if err := os.Remove(r.Path()); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	got, err := r.ReadAll(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("ReadAll on missing file: %v %+v", err, got)
	}
	if err := r.Append(ctx, models.LogEntry{Timestamp: time.Now(), Role: models.RoleAdmin, Action: models.ActionAddition, ItemName: "Acid", Amount: 1}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, _ = r.ReadAll(ctx)
	if len(got) != 1 {
		t.Errorf("expected 1 entry, got %d", len(got))
	}
}

func TestAuditFileRepo_ColumnOrderIsFree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "item_name,amount,timestamp,action_kind,actor_role\nAcid,5,2024-01-02 03:04:05,Withdrawal,user\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, err := NewAuditFileRepo(path)
	if err != nil {
		t.Fatalf("NewAuditFileRepo: %v", err)
	}
	got, err := r.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 1 || got[0].ItemName != "Acid" || got[0].Amount != 5 || got[0].Action != models.ActionWithdrawal || got[0].Role != models.RoleUser {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestAuditFileRepo_MissingActionColumnIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "timestamp,actor_role,item_name,amount\n2024-01-02 03:04:05,admin,Acid,5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, err := NewAuditFileRepo(path)
	if err != nil {
		t.Fatalf("NewAuditFileRepo: %v", err)
	}
	_, err = r.ReadAll(context.Background())
	if !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("expected ErrStorageCorrupt, got %v", err)
	}
	if !strings.Contains(err.Error(), "action_kind") {
		t.Errorf("error should name the column: %v", err)
	}
}

func TestAuditFileRepo_BadRowIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "timestamp,actor_role,action_kind,item_name,amount\nyesterday,admin,Addition,Acid,5\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, _ := NewAuditFileRepo(path)
	if _, err := r.ReadAll(context.Background()); !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("expected ErrStorageCorrupt, got %v", err)
	}
}

func TestAuditFileRepo_ZeroAmountRowIsCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "timestamp,actor_role,action_kind,item_name,amount\n2024-03-01 09:30:15,admin,Addition,Acid,0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, _ := NewAuditFileRepo(path)
	if _, err := r.ReadAll(context.Background()); !errors.Is(err, ErrStorageCorrupt) {
		t.Fatalf("expected ErrStorageCorrupt, got %v", err)
	}
}

func TestAuditFileRepo_Append_AfterUnterminatedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	content := "timestamp,actor_role,action_kind,item_name,amount\n2024-03-01 09:30:15,admin,Addition,Acid,5"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, _ := NewAuditFileRepo(path)
	ctx := context.Background()

	e := models.LogEntry{Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.Local), Role: models.RoleUser, Action: models.ActionWithdrawal, ItemName: "Acid", Amount: 2}
	if err := r.Append(ctx, e); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := r.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(got) != 2 || got[0].Amount != 5 || got[1].Action != models.ActionWithdrawal || got[1].Amount != 2 {
		t.Errorf("entries: %+v", got)
	}
}

func TestAuditFileRepo_Reinitialize_QuarantinesOldFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	broken := "when,who\n1,2\n"
	if err := os.WriteFile(path, []byte(broken), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	r, _ := NewAuditFileRepo(path)
	r.Now = func() time.Time { return time.Unix(1700000000, 0) }

	quarantine, err := r.Reinitialize(context.Background())
	if err != nil {
		t.Fatalf("Reinitialize: %v", err)
	}
	if quarantine != path+".corrupt-1700000000" {
		t.Errorf("quarantine path: got %q", quarantine)
	}
	kept, err := os.ReadFile(quarantine)
	if err != nil || string(kept) != broken {
		t.Errorf("quarantined content: %q err=%v", kept, err)
	}

	got, err := r.ReadAll(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("fresh log: %v %+v", err, got)
	}
}
