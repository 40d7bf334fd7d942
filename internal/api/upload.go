package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"os"
)

// handleUpload writes an uploaded multipart file into SCRIPT_ROOT (§6). The
// written file becomes visible to the next disk-sync pass like any other
// file dropped there directly.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxContentBytes); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("missing multipart field \"file\""))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("invalid file name"))
		return
	}

	if err := os.MkdirAll(s.scriptRoot, 0o755); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	dest := filepath.Join(s.scriptRoot, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(file, maxContentBytes)); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusCreated, contentBody{Content: dest})
}
