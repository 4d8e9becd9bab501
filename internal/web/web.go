// Package web serves the server-rendered panels: login, the admin stock
// form with spreadsheet downloads, and the user withdrawal form.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/auth"
	"github.com/crucial707/labstock/internal/export"
	"github.com/crucial707/labstock/internal/handlers"
	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/middleware"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/repo"
)

//go:embed templates
var templatesFS embed.FS

const (
	msgBadCredentials = "Invalid credentials"
	msgTooManyLogins  = "Too many login attempts, try again in a minute"
	msgInvalidInput   = "Invalid input: enter a reagent name and a whole amount greater than zero"
	msgNotFound       = "Reagent not found"
	msgInsufficient   = "Insufficient stock"
	msgUnavailable    = "The inventory could not be updated, try again later"
)

// Server holds the collaborators of the HTML panels.
type Server struct {
	Service  *inventory.Service
	Provider auth.Provider
	Tokens   *auth.Tokens
	// Limiter throttles login attempts per IP; nil disables it.
	Limiter *middleware.IPRateLimiter
	Logger  *zap.Logger
	// SecureCookie marks the session cookie Secure (serving TLS).
	SecureCookie bool

	pages map[string]*template.Template
}

type page struct {
	Title   string
	Role    models.Role
	Error   string
	Items   []models.Item
	Reagent string
	Amount  string
}

// New parses the embedded templates.
func New(s Server) (*Server, error) {
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.pages = make(map[string]*template.Template)
	for _, name := range []string{"login.html", "admin.html", "user.html"} {
		t, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/items.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		s.pages[name] = t
	}
	return &s, nil
}

// Routes mounts the panels on r. The Session middleware must run first.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.loginForm)
	r.Post("/", s.loginSubmit)
	r.Get("/logout", s.logout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RedirectDeny("/"), models.RoleAdmin))
		r.Get("/admin", s.adminPanel)
		r.Post("/admin", s.adminSubmit)
		r.Get("/download/reagents", s.downloadReagents)
		r.Get("/download/log", s.downloadLog)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(middleware.RedirectDeny("/"), models.RoleUser))
		r.Get("/user", s.userPanel)
		r.Post("/user", s.userSubmit)
	})
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data page) {
	var buf bytes.Buffer
	if err := s.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.Logger.Error("template execute", zap.String("template", name), zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func panelFor(role models.Role) string {
	if role == models.RoleAdmin {
		return "/admin"
	}
	return "/user"
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) {
	if p, ok := middleware.PrincipalFrom(r.Context()); ok {
		http.Redirect(w, r, panelFor(p.Role), http.StatusSeeOther)
		return
	}
	s.render(w, http.StatusOK, "login.html", page{Title: "Sign in"})
}

func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if s.Limiter != nil && !s.Limiter.Allow(middleware.ClientIP(r)) {
		s.render(w, http.StatusTooManyRequests, "login.html", page{Title: "Sign in", Error: msgTooManyLogins})
		return
	}
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login.html", page{Title: "Sign in", Error: msgBadCredentials})
		return
	}

	p, err := s.Provider.Authenticate(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrAuthFailed) {
			s.Logger.Error("authenticate", zap.Error(err))
		}
		s.render(w, http.StatusOK, "login.html", page{Title: "Sign in", Error: msgBadCredentials})
		return
	}

	token, err := s.Tokens.Issue(p)
	if err != nil {
		s.Logger.Error("issue session token", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(s.Tokens.TTL()),
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.Logger.Info("signed in", zap.String("username", p.Username), zap.String("role", string(p.Role)))
	http.Redirect(w, r, panelFor(p.Role), http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// panel renders an admin or user page with the current item list.
func (s *Server) panel(w http.ResponseWriter, r *http.Request, name string, data page) {
	items, err := s.Service.Items(r.Context())
	if err != nil {
		s.Logger.Error("list items", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	data.Role = middleware.RoleFrom(r.Context())
	data.Items = items
	s.render(w, http.StatusOK, name, data)
}

func (s *Server) adminPanel(w http.ResponseWriter, r *http.Request) {
	s.panel(w, r, "admin.html", page{Title: "Admin"})
}

func (s *Server) userPanel(w http.ResponseWriter, r *http.Request) {
	s.panel(w, r, "user.html", page{Title: "Withdraw"})
}

func (s *Server) adminSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "admin.html", "Admin", s.Service.Add)
}

func (s *Server) userSubmit(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, "user.html", "Withdraw", s.Service.Withdraw)
}

type mutation func(ctx context.Context, role models.Role, name string, amount int) (models.Item, error)

// submit applies a stock change from a panel form. On success it redirects
// back to the panel; domain errors re-render the panel with the message.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, tmpl, title string, op mutation) {
	data := page{Title: title}
	if err := r.ParseForm(); err != nil {
		data.Error = msgInvalidInput
		s.panel(w, r, tmpl, data)
		return
	}
	data.Reagent = strings.TrimSpace(r.PostFormValue("reagent"))
	data.Amount = strings.TrimSpace(r.PostFormValue("amount"))

	name, amount, err := handlers.ParseStock(data.Reagent, data.Amount)
	if err == nil {
		_, err = op(r.Context(), middleware.RoleFrom(r.Context()), name, amount)
	}
	if err == nil {
		http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
		return
	}

	switch {
	case errors.Is(err, repo.ErrInvalidInput):
		data.Error = msgInvalidInput
	case errors.Is(err, repo.ErrItemNotFound):
		data.Error = msgNotFound
	case errors.Is(err, repo.ErrInsufficientStock):
		data.Error = msgInsufficient
	case errors.Is(err, inventory.ErrAuditIncomplete):
		s.Logger.Error("stock changed without audit entry", zap.Error(err))
		data.Error = inventory.ErrAuditIncomplete.Error()
		data.Reagent, data.Amount = "", ""
	default:
		s.Logger.Error("stock mutation", zap.String("reagent", name), zap.Error(err))
		data.Error = msgUnavailable
	}
	s.panel(w, r, tmpl, data)
}

func attachment(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) downloadReagents(w http.ResponseWriter, r *http.Request) {
	items, err := s.Service.Items(r.Context())
	if err != nil {
		s.Logger.Error("list items for export", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	data, err := export.Inventory(items)
	if err != nil {
		s.Logger.Error("render inventory workbook", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	attachment(w, export.InventoryFileName, data)
}

// downloadLog exports the grouped report. An unreadable log is quarantined
// and replaced, and the admin is asked to retry.
func (s *Server) downloadLog(w http.ResponseWriter, r *http.Request) {
	rep, err := s.Service.Report(r.Context())
	if err != nil {
		if errors.Is(err, inventory.ErrAuditCorrupt) {
			s.Logger.Error("audit log unreadable", zap.Error(err))
			if _, rerr := s.Service.RecoverAuditLog(r.Context()); rerr != nil {
				http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
				return
			}
			http.Error(w, handlers.ErrMessageCorruptLog, http.StatusBadRequest)
			return
		}
		s.Logger.Error("build report", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	data, err := export.Report(rep)
	if err != nil {
		s.Logger.Error("render report workbook", zap.Error(err))
		http.Error(w, handlers.ErrMessageInternal, http.StatusInternalServerError)
		return
	}
	attachment(w, export.ReportFileName, data)
}
