package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/store"
)

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error(ctx, "api: encode response failed", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	writeJSON(ctx, w, status, errorBody{Error: err.Error()})
}

// writeStoreError maps a store error to the status table in §6: 404 if a
// referenced script is absent, 500 for anything else.
func writeStoreError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(ctx, w, http.StatusNotFound, err)
		return
	}
	writeError(ctx, w, http.StatusInternalServerError, err)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
