package download

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownload_WritesFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/log" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="log_report.xlsx"`)
		w.Write([]byte("xlsx-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token")
	os.WriteFile(tokenFile, []byte("tok"), 0o600)
	t.Setenv("LABSTOCK_API_URL", srv.URL)
	t.Setenv("LABSTOCK_TOKEN_FILE", tokenFile)

	target := filepath.Join(dir, "out.xlsx")
	cmd := downloadCmd()
	_ = cmd.Flags().Set("output", target)
	if err := cmd.RunE(cmd, []string{"log"}); err != nil {
		t.Fatalf("RunE: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil || string(data) != "xlsx-bytes" {
		t.Errorf("file: %q %v", data, err)
	}
}

func TestDownload_RejectsUnknownTarget(t *testing.T) {
	cmd := downloadCmd()
	if err := cmd.Args(cmd, []string{"everything"}); err == nil {
		t.Error("expected invalid argument error")
	}
}
