package items

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crucial707/labstock/internal/models"
)

// captureOutput helps capture stdout during command execution.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	return buf.String()
}

func withServer(t *testing.T, items []models.Item) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/items" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(items)
	}))
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("tok"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("LABSTOCK_API_URL", srv.URL)
	t.Setenv("LABSTOCK_TOKEN_FILE", tokenFile)
}

func TestListItems_TableOutput(t *testing.T) {
	withServer(t, []models.Item{{Name: "Acid", Quantity: 70}, {Name: "Ethanol", Quantity: 5}})

	cmd := listItemsCmd()
	var runErr error
	out := captureOutput(t, func() {
		runErr = cmd.RunE(cmd, []string{})
	})
	if runErr != nil {
		t.Fatalf("RunE: %v", runErr)
	}
	if !strings.Contains(out, "Acid") || !strings.Contains(out, "70") || !strings.Contains(out, "Ethanol") {
		t.Fatalf("expected items in output, got: %s", out)
	}
}

func TestListItems_JSONOutput(t *testing.T) {
	withServer(t, []models.Item{{Name: "Acid", Quantity: 70}})

	cmd := listItemsCmd()
	_ = cmd.Flags().Set("json", "true")
	out := captureOutput(t, func() {
		_ = cmd.RunE(cmd, []string{})
	})
	if !strings.Contains(out, `"name": "Acid"`) {
		t.Fatalf("expected JSON output, got: %s", out)
	}
}

func TestListItems_NotLoggedIn(t *testing.T) {
	t.Setenv("LABSTOCK_TOKEN_FILE", filepath.Join(t.TempDir(), "missing"))
	cmd := listItemsCmd()
	if err := cmd.RunE(cmd, []string{}); err == nil || !strings.Contains(err.Error(), "login") {
		t.Errorf("expected not-logged-in error, got %v", err)
	}
}
