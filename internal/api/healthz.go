package api

import (
	"net/http"

	"github.com/scriptd/scriptd/internal/buildinfo"
)

type healthzBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// handleHealthz reports process liveness and build metadata (§6 [ADD]).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, healthzBody{
		Status:  "ok",
		Version: buildinfo.Version,
		Uptime:  buildinfo.Uptime().String(),
	})
}
