package api

import "net/http"

type scanResult struct {
	Synced int `json:"synced"`
}

// handleScan runs the disk-sync pass on demand (§6), the same pass Bootstrap
// runs at startup and on every fsnotify event.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeJSON(r.Context(), w, http.StatusOK, scanResult{})
		return
	}
	n, err := s.scanner.Sync()
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, scanResult{Synced: n})
}
