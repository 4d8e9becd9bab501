package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/crucial707/labstock/internal/auth"
	"github.com/crucial707/labstock/internal/config"
	"github.com/crucial707/labstock/internal/handlers"
	"github.com/crucial707/labstock/internal/inventory"
	"github.com/crucial707/labstock/internal/middleware"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/web"
)

func newRouter(cfg config.Config, svc *inventory.Service, provider auth.Provider, tokens *auth.Tokens, log *zap.Logger) (http.Handler, error) {
	httpLog := log.Named("http")
	limiter := middleware.LoginRateLimiter()

	panels, err := web.New(web.Server{
		Service:      svc,
		Provider:     provider,
		Tokens:       tokens,
		Limiter:      limiter,
		Logger:       log.Named("web"),
		SecureCookie: cfg.TLSEnabled(),
	})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(httpLog))
	r.Use(middleware.RequestLog(httpLog))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(cfg.TLSEnabled()))
	r.Use(middleware.MaxBytes(middleware.DefaultMaxBodyBytes))
	r.Use(middleware.Session(tokens))

	r.Get("/health", handlers.Health)
	r.Get("/ready", handlers.Ready(svc, httpLog))
	r.Handle("/metrics", promhttp.Handler())

	panels.Routes(r)

	authH := &handlers.AuthHandler{Provider: provider, Tokens: tokens, Logger: log.Named("api.auth")}
	stockH := &handlers.StockHandler{Service: svc, Logger: log.Named("api.stock")}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

		r.With(limiter.Middleware).Post("/auth/login", authH.Login)

		r.With(middleware.RequireRole(middleware.JSONDeny, models.RoleAdmin, models.RoleUser)).
			Get("/items", stockH.ListItems)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.JSONDeny, models.RoleAdmin))
			r.Post("/additions", stockH.Add)
			r.Get("/audit", stockH.ListAudit)
			r.Get("/report", stockH.Report)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.JSONDeny, models.RoleUser))
			r.Post("/withdrawals", stockH.Withdraw)
		})
	})

	return r, nil
}
