package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/MikeSquared-Agency/Prism/internal/monitor"
	"github.com/MikeSquared-Agency/Prism/internal/store"
)

// BackendMonitor reports the analysis backend's health.
type BackendMonitor interface {
	Status() (monitor.Status, bool)
	Probe(ctx context.Context) monitor.Status
}

// HistoryHandler serves snapshot history and backend status. The store and
// monitor are optional.
type HistoryHandler struct {
	store   store.Store
	monitor BackendMonitor
}

func NewHistoryHandler(s store.Store, m BackendMonitor) *HistoryHandler {
	return &HistoryHandler{store: s, monitor: m}
}

func (h *HistoryHandler) Snapshots(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	q := r.URL.Query()
	filter := store.SnapshotFilter{
		EntityName: q.Get("entity"),
		Source:     store.Source(q.Get("source")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	snaps, err := h.store.ListSnapshots(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snaps == nil {
		snaps = []*store.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (h *HistoryHandler) Overview(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot store not configured")
		return
	}
	o, err := h.store.GetOverview(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Status returns the last probe, probing now if none has run yet.
func (h *HistoryHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "backend monitor not configured")
		return
	}
	s, ok := h.monitor.Status()
	if !ok {
		s = h.monitor.Probe(r.Context())
	}
	writeJSON(w, http.StatusOK, s)
}
