package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scriptd/scriptd/internal/logger"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/store"
	"github.com/scriptd/scriptd/internal/supervisor"
)

// scriptInput is the request body shape for POST/PUT /scripts (§3.1).
type scriptInput struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Type         string `json:"type"`
	Arguments    string `json:"arguments"`
	Cron         string `json:"cron"`
	Enabled      bool   `json:"enabled"`
	RunOnStartup bool   `json:"run_on_startup"`
	Description  string `json:"description"`
}

func idFromURL(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) handleListScripts(w http.ResponseWriter, r *http.Request) {
	scripts, err := s.store.ListScripts(r.Context())
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, scripts)
}

func (s *Server) handleCreateScript(w http.ResponseWriter, r *http.Request) {
	var in scriptInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	sc := &model.Script{
		Name:         in.Name,
		Path:         in.Path,
		Type:         model.ScriptType(in.Type),
		Arguments:    in.Arguments,
		Cron:         in.Cron,
		Enabled:      in.Enabled,
		RunOnStartup: in.RunOnStartup,
		Description:  in.Description,
		CreatedAt:    time.Now(),
		LastStatus:   model.StatusIdle,
	}
	if !sc.Type.Valid() {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("invalid script type"))
		return
	}

	if err := s.store.CreateScript(r.Context(), sc); err != nil {
		if errors.Is(err, store.ErrDuplicatePath) {
			writeError(r.Context(), w, http.StatusBadRequest, err)
			return
		}
		writeStoreError(r.Context(), w, err)
		return
	}

	s.jobs.UpsertScriptJob(r.Context(), sc, s.sup.RunJobFunc(sc.ID))
	writeJSON(r.Context(), w, http.StatusCreated, sc)
}

func (s *Server) handleUpdateScript(w http.ResponseWriter, r *http.Request) {
	id, err := idFromURL(r)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}

	existing, err := s.store.GetScript(r.Context(), id)
	if err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	var in scriptInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, err)
		return
	}
	if !model.ScriptType(in.Type).Valid() {
		writeError(r.Context(), w, http.StatusBadRequest, errors.New("invalid script type"))
		return
	}

	existing.Name = in.Name
	existing.Path = in.Path
	existing.Type = model.ScriptType(in.Type)
	existing.Arguments = in.Arguments
	existing.Cron = in.Cron
	existing.Enabled = in.Enabled
	existing.RunOnStartup = in.RunOnStartup
	existing.Description = in.Description

	if err := s.store.UpdateScript(r.Context(), existing); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}

	// Always unregister then re-register by current state (§6).
	s.jobs.UpsertScriptJob(r.Context(), existing, s.sup.RunJobFunc(existing.ID))
	writeJSON(r.Context(), w, http.StatusOK, existing)
}

func (s *Server) handleDeleteScript(w http.ResponseWriter, r *http.Request) {
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

	s.jobs.Remove(sc.JobID())
	s.sup.Stop(id)

	if err := removeIfExists(sc.Path); err != nil {
		logger.Warn(r.Context(), "api: cannot delete script file", "script_id", id, "error", err)
	}
	if err := removeIfExists(s.sink.Path(id)); err != nil {
		logger.Warn(r.Context(), "api: cannot delete script log", "script_id", id, "error", err)
	}

	if err := s.store.DeleteScript(r.Context(), id); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunScript(w http.ResponseWriter, r *http.Request) {
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

	if err := s.sup.Run(r.Context(), id, sc.IsDaemon()); err != nil {
		if errors.Is(err, supervisor.ErrAlreadyRunning) {
			writeError(r.Context(), w, http.StatusConflict, err)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, err)
		return
	}

	if err := s.store.UpdateScriptStatus(r.Context(), id, model.StatusRunning, sc.LastOutput); err != nil {
		logger.Warn(r.Context(), "api: cannot record running status", "script_id", id, "error", err)
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopScript(w http.ResponseWriter, r *http.Request) {
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

	// §6: status is set to stopped regardless of Stop's boolean result.
	_ = s.sup.Stop(id)
	if err := s.store.UpdateScriptStatus(r.Context(), id, model.StatusStopped, sc.LastOutput); err != nil {
		writeStoreError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
