package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/scriptd/scriptd/internal/logger"
)

const maxContentBytes = 10 * 1024 * 1024

type contentBody struct {
	Content string `json:"content"`
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	sc, err := s.store.GetScript(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	data, err := os.ReadFile(sc.Path)
	if err != nil {
		if os.IsNotExist(err) {
			writeError(r.Context(), w, http.StatusNotFound, errors.New("script file not found on disk"))
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, contentBody{Content: string(data)})
}

func (s *Server) handlePutContent(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	sc, err := s.store.GetScript(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	var body contentBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	if err := os.WriteFile(sc.Path, []byte(body.Content), 0o644); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	logger.Info(r.Context(), "api: script content updated", "script_id", id)
	w.WriteHeader(http.StatusOK)
}
