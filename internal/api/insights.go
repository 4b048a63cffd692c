package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/session"
)

// InsightsHandler proxies the backend's AI and reporting contracts.
type InsightsHandler struct {
	ctrl    *session.Controller
	analyst analyst.Client
	logger  *slog.Logger
}

func NewInsightsHandler(c *session.Controller, a analyst.Client, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{ctrl: c, analyst: a, logger: logger}
}

func (h *InsightsHandler) Rules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ctrl.GenerateRules(r.Context())
	if err != nil {
		writeSessionError(w, err)
		return
	}
	if rules == nil {
		rules = []analyst.Rule{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rules": rules})
}

type IssueAnalysisRequest struct {
	Domain string `json:"domain,omitempty"`
}

func (h *InsightsHandler) IssueAnalysis(w http.ResponseWriter, r *http.Request) {
	var req IssueAnalysisRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sa, err := h.ctrl.IssueAnalysis(r.Context(), req.Domain)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sa)
}

type ExportRequest struct {
	EntityName string `json:"entity_name,omitempty"`
}

func (h *InsightsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rc, entity, err := h.ctrl.ExportPDF(r.Context(), req.EntityName)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, reportFilename(entity, time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("pdf stream interrupted", "entity", entity, "error", err)
	}
}

func reportFilename(entity string, now time.Time) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, strings.TrimSuffix(entity, ".csv"))
	return fmt.Sprintf("analysis_%s_%s.pdf", safe, now.Format("20060102_150405"))
}

func (h *InsightsHandler) Domains(w http.ResponseWriter, r *http.Request) {
	domains, err := h.analyst.ListDomains(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if domains == nil {
		domains = []analyst.Domain{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"domains": domains})
}

func (h *InsightsHandler) SubdomainSummary(w http.ResponseWriter, r *http.Request) {
	var req analyst.SubdomainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" || req.SubDomain == "" {
		writeError(w, http.StatusBadRequest, "domain and sub_domain required")
		return
	}
	s, err := h.analyst.SubdomainSummary(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *InsightsHandler) SaveSubdomainSummary(w http.ResponseWriter, r *http.Request) {
	var req analyst.SaveSummaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Domain == "" || req.SubDomain == "" || req.Summary == "" {
		writeError(w, http.StatusBadRequest, "domain, sub_domain and summary required")
		return
	}
	if req.EditedBy == "" {
		req.EditedBy = "User"
	}
	res, err := h.analyst.SaveSubdomainSummary(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
