package handlers

import (
	"errors"
	"testing"

	"github.com/crucial707/labstock/internal/repo"
)

func TestParseStock(t *testing.T) {
	name, n, err := ParseStock("  Acid ", " 42 ")
	if err != nil || name != "Acid" || n != 42 {
		t.Errorf("got %q %d %v", name, n, err)
	}

	bad := []struct{ reagent, amount, field string }{
		{"", "1", "reagent"},
		{"Acid", "", "amount"},
		{"Acid", "0", "amount"},
		{"Acid", "-1", "amount"},
		{"Acid", "1.5", "amount"},
		{"Acid", "ten", "amount"},
		{"Acid", "99999999999999999999999", "amount"},
	}
	for _, b := range bad {
		_, _, err := ParseStock(b.reagent, b.amount)
		if !errors.Is(err, repo.ErrInvalidInput) {
			t.Errorf("%q/%q: expected ErrInvalidInput, got %v", b.reagent, b.amount, err)
			continue
		}
		var ie *InputError
		if !errors.As(err, &ie) || ie.Fields[b.field] == "" {
			t.Errorf("%q/%q: expected field %q in %v", b.reagent, b.amount, b.field, err)
		}
	}
}

func TestStatusFor(t *testing.T) {
	if s, _ := StatusFor(repo.ErrItemNotFound); s != 404 {
		t.Errorf("not found: %d", s)
	}
	if s, msg := StatusFor(errors.New("disk on fire")); s != 500 || msg != ErrMessageInternal {
		t.Errorf("unknown: %d %q", s, msg)
	}
}
