package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(""); got != "unmatched" {
		t.Errorf("empty pattern: got %q", got)
	}
	if got := NormalizePath("/download/log"); got != "/download/log" {
		t.Errorf("route pattern: got %q", got)
	}
}

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/admin", "200"))
	RecordRequest("GET", "/admin", 200, 0.01)
	after := testutil.ToFloat64(RequestTotal.WithLabelValues("GET", "/admin", "200"))
	if after-before != 1 {
		t.Errorf("request counter: got delta %v, want 1", after-before)
	}
}

func TestIncStockMutation(t *testing.T) {
	before := testutil.ToFloat64(StockMutations.WithLabelValues("Addition"))
	IncStockMutation("Addition")
	if got := testutil.ToFloat64(StockMutations.WithLabelValues("Addition")); got-before != 1 {
		t.Errorf("mutation counter: got delta %v, want 1", got-before)
	}
}
