package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/inventory"
)

// ListAudit returns the raw audit log in append order.
func (h *StockHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Service.AuditEntries(r.Context())
	if err != nil {
		if errors.Is(err, inventory.ErrAuditCorrupt) {
			h.recoverLog(w, r, err)
			return
		}
		h.Logger.Error("read audit log", zap.Error(err))
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Report returns the grouped audit report.
func (h *StockHandler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Service.Report(r.Context())
	if err != nil {
		if errors.Is(err, inventory.ErrAuditCorrupt) {
			h.recoverLog(w, r, err)
			return
		}
		h.Logger.Error("build report", zap.Error(err))
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// recoverLog quarantines a corrupt log and tells the caller to retry.
func (h *StockHandler) recoverLog(w http.ResponseWriter, r *http.Request, cause error) {
	h.Logger.Error("audit log unreadable", zap.Error(cause))
	if _, err := h.Service.RecoverAuditLog(r.Context()); err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	JSONError(w, ErrMessageCorruptLog, http.StatusBadRequest)
}
