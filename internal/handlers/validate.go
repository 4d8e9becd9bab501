package handlers

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/crucial707/labstock/internal/repo"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StockForm is the raw reagent/amount pair submitted by the panels and the API.
type StockForm struct {
	Reagent string `validate:"required,max=200"`
	Amount  string `validate:"required,number"`
}

// InputError lists the fields that failed validation. It matches
// repo.ErrInvalidInput under errors.Is.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *InputError) Unwrap() error { return repo.ErrInvalidInput }

// ParseStock validates a reagent name and an amount given as text. The
// amount must be plain digits and greater than zero.
func ParseStock(reagent, amount string) (string, int, error) {
	form := StockForm{Reagent: strings.TrimSpace(reagent), Amount: strings.TrimSpace(amount)}
	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return "", 0, fmt.Errorf("%w: %v", repo.ErrInvalidInput, err)
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = fieldMessage(fe)
		}
		return "", 0, &InputError{Fields: fields}
	}
	n, err := strconv.Atoi(form.Amount)
	if err != nil {
		return "", 0, &InputError{Fields: map[string]string{"amount": "is too large"}}
	}
	if n <= 0 {
		return "", 0, &InputError{Fields: map[string]string{"amount": "must be greater than zero"}}
	}
	return form.Reagent, n, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "number":
		return "must be a whole number"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
