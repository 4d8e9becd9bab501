package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/auth"
)

// AuthHandler exchanges credentials for a session token.
type AuthHandler struct {
	Provider auth.Provider
	Tokens   *auth.Tokens
	Logger   *zap.Logger
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and returns a bearer token with the resolved role.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		JSONError(w, "invalid json", http.StatusBadRequest)
		return
	}
	if err := validate.Struct(input); err != nil {
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	p, err := h.Provider.Authenticate(r.Context(), input.Username, input.Password)
	if err != nil {
		if !errors.Is(err, auth.ErrAuthFailed) {
			h.Logger.Error("authenticate", zap.Error(err))
			JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
			return
		}
		h.Logger.Warn("login rejected", zap.String("username", input.Username))
		JSONError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.Tokens.Issue(p)
	if err != nil {
		h.Logger.Error("issue session token", zap.Error(err))
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"role":       p.Role,
		"expires_at": time.Now().Add(h.Tokens.TTL()).UTC().Format(time.RFC3339),
	})
}
