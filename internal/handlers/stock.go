package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/middleware"
	"github.com/crucial707/labstock/internal/models"
)

type mutation func(ctx context.Context, role models.Role, name string, amount int) (models.Item, error)

// StockHandler serves the inventory endpoints of the JSON API.
type StockHandler struct {
	Service *inventory.Service
	Logger  *zap.Logger
}

type stockRequest struct {
	Reagent string      `json:"reagent"`
	Amount  json.Number `json:"amount"`
}

// ListItems returns every reagent with its current quantity.
func (h *StockHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.Items(r.Context())
	if err != nil {
		h.Logger.Error("list items", zap.Error(err))
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Add records an addition. Admin only.
func (h *StockHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Service.Add)
}

// Withdraw records a withdrawal. User only.
func (h *StockHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.Service.Withdraw)
}

func (h *StockHandler) mutate(w http.ResponseWriter, r *http.Request, op mutation) {
	var input stockRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	name, amount, err := ParseStock(input.Reagent, input.Amount.String())
	if err != nil {
		if ie, ok := err.(*InputError); ok {
			JSONValidationError(w, "invalid input", ie.Fields, http.StatusBadRequest)
			return
		}
		JSONError(w, "invalid input", http.StatusBadRequest)
		return
	}

	item, err := op(r.Context(), middleware.RoleFrom(r.Context()), name, amount)
	if err != nil {
		status, msg := StatusFor(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Error("stock mutation", zap.String("reagent", name), zap.Error(err))
		}
		JSONError(w, msg, status)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
