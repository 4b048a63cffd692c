package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
)

type AdminHandler struct {
	analyst analyst.Client
}

func NewAdminHandler(a analyst.Client) *AdminHandler {
	return &AdminHandler{analyst: a}
}

// InitDB asks the backend to create its tables and seed domains.
func (h *AdminHandler) InitDB(w http.ResponseWriter, r *http.Request) {
	if err := h.analyst.InitDB(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "initialized"})
}
