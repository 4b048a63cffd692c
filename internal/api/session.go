package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
	"github.com/MikeSquared-Agency/Prism/internal/session"
)

type SessionHandler struct {
	ctrl           *session.Controller
	maxUploadBytes int64
}

func NewSessionHandler(c *session.Controller, maxUploadBytes int64) *SessionHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 32 << 20
	}
	return &SessionHandler{ctrl: c, maxUploadBytes: maxUploadBytes}
}

type AnalyzeTableRequest struct {
	GenerateInsights bool `json:"generate_insights"`
}

func (h *SessionHandler) AnalyzeTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "table name required")
		return
	}

	var req AnalyzeTableRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.ctrl.AnalyzeTable(r.Context(), name, req.GenerateInsights)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) AnalyzeCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	insights, _ := strconv.ParseBool(r.FormValue("generate_insights"))

	st, err := h.ctrl.AnalyzeCSV(r.Context(), header.Filename, file, insights)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.ctrl.Current()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *SessionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *SessionHandler) Weights(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.ctrl.Weights()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type EditWeightsRequest struct {
	Edits []scoring.Edit `json:"edits"`
}

type EditWeightsResponse struct {
	Weights *scoring.WeightConfig `json:"weights"`
	Summary *scoring.TableSummary `json:"summary"`
}

func (h *SessionHandler) EditWeights(w http.ResponseWriter, r *http.Request) {
	var req EditWeightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st, err := h.ctrl.EditWeights(r.Context(), req.Edits)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EditWeightsResponse{Weights: st.Weights, Summary: st.Summary})
}

func (h *SessionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ctrl.Summary()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
