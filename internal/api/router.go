package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/config"
	"github.com/MikeSquared-Agency/Prism/internal/ratelimit"
	"github.com/MikeSquared-Agency/Prism/internal/session"
	"github.com/MikeSquared-Agency/Prism/internal/store"
)

func NewRouter(c *session.Controller, a analyst.Client, s store.Store, m BackendMonitor, l ratelimit.Limiter, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Client-ID", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	if l != nil {
		r.Use(RateLimitMiddleware(l, cfg.RateLimit.TrustClientID, logger))
	}

	sessions := NewSessionHandler(c, cfg.MaxUploadBytes())
	insights := NewInsightsHandler(c, a, logger)
	history := NewHistoryHandler(s, m)
	admin := NewAdminHandler(a)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyses/table/{name}", sessions.AnalyzeTable)
		r.Post("/analyses/csv", sessions.AnalyzeCSV)

		r.Get("/session", sessions.Get)
		r.Delete("/session", sessions.Reset)
		r.Get("/weights", sessions.Weights)
		r.Patch("/weights", sessions.EditWeights)
		r.Get("/summary", sessions.Summary)

		r.Post("/rules", insights.Rules)
		r.Post("/issues/analysis", insights.IssueAnalysis)
		r.Post("/export/pdf", insights.ExportPDF)
		r.Get("/domains", insights.Domains)
		r.Post("/subdomains/summary", insights.SubdomainSummary)
		r.Post("/subdomains/summary/save", insights.SaveSubdomainSummary)

		r.Get("/status", history.Status)
		r.Get("/snapshots", history.Snapshots)
		r.Get("/overview", history.Overview)

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.Server.AdminToken))
			r.Post("/admin/init-db", admin.InitDB)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
