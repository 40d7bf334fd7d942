package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptd/scriptd/internal/logsink"
	"github.com/scriptd/scriptd/internal/model"
	"github.com/scriptd/scriptd/internal/scheduler"
	"github.com/scriptd/scriptd/internal/store"
	"github.com/scriptd/scriptd/internal/supervisor"
)

type fakeScanner struct {
	n   int
	err error
}

func (f *fakeScanner) Sync() (int, error) { return f.n, f.err }

func newTestServer(t *testing.T) (*Server, store.Store, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "scriptd.db")
	st, err := store.Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	scriptRoot := t.TempDir()
	sink := logsink.New(filepath.Join(t.TempDir(), "logs"))
	sup := supervisor.New(st, sink, nil, supervisor.Config{})
	jobs := scheduler.New()
	jobs.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		jobs.Stop(ctx)
	})

	srv := New(Config{
		Store:      st,
		Supervisor: sup,
		Jobs:       jobs,
		Sink:       sink,
		Scanner:    &fakeScanner{n: 3},
		ScriptRoot: scriptRoot,
	})
	return srv, st, scriptRoot
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_ScriptCRUD(t *testing.T) {
	srv, _, scriptRoot := newTestServer(t)
	router := srv.Router()

	scriptPath := filepath.Join(scriptRoot, "hello.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\necho hi\n"), 0o755))

	createRec := doJSON(t, router, http.MethodPost, "/api/scripts/", scriptInput{
		Name: "hello", Path: scriptPath, Type: "shell", Enabled: true, Cron: "*/5 * * * *",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)

	var created model.Script
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)

	listRec := doJSON(t, router, http.MethodGet, "/api/scripts/", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
	var listed []*model.Script
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listed))
	assert.Len(t, listed, 1)

	updateRec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/scripts/%d/", created.ID), scriptInput{
		Name: "hello-renamed", Path: scriptPath, Type: "shell", Enabled: false,
	})
	require.Equal(t, http.StatusOK, updateRec.Code)
	var updated model.Script
	require.NoError(t, json.Unmarshal(updateRec.Body.Bytes(), &updated))
	assert.Equal(t, "hello-renamed", updated.Name)

	delRec := doJSON(t, router, http.MethodDelete, fmt.Sprintf("/api/scripts/%d/", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, delRec.Code)
	_, err := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(err))
}

func TestServer_RunAndStopScript(t *testing.T) {
	srv, _, scriptRoot := newTestServer(t)
	router := srv.Router()

	scriptPath := filepath.Join(scriptRoot, "sleep.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("#!/bin/bash\nsleep 5\n"), 0o755))

	createRec := doJSON(t, router, http.MethodPost, "/api/scripts/", scriptInput{
		Name: "sleeper", Path: scriptPath, Type: "shell", Enabled: true,
	})
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created model.Script
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	runRec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/scripts/%d/run", created.ID), nil)
	assert.Equal(t, http.StatusAccepted, runRec.Code)

	runAgainRec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/scripts/%d/run", created.ID), nil)
	assert.Equal(t, http.StatusConflict, runAgainRec.Code)

	stopRec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/api/scripts/%d/stop", created.ID), nil)
	assert.Equal(t, http.StatusOK, stopRec.Code)
}

func TestServer_ContentRoundTrip(t *testing.T) {
	srv, _, scriptRoot := newTestServer(t)
	router := srv.Router()

	scriptPath := filepath.Join(scriptRoot, "edit.sh")
	require.NoError(t, os.WriteFile(scriptPath, []byte("echo old"), 0o644))

	createRec := doJSON(t, router, http.MethodPost, "/api/scripts/", scriptInput{
		Name: "edit", Path: scriptPath, Type: "shell",
	})
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created model.Script
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	getRec := doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/scripts/%d/content", created.ID), nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var got contentBody
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &got))
	assert.Equal(t, "echo old", got.Content)

	putRec := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/scripts/%d/content", created.ID), contentBody{Content: "echo new"})
	assert.Equal(t, http.StatusOK, putRec.Code)

	data, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	assert.Equal(t, "echo new", string(data))
}

func TestServer_Upload(t *testing.T) {
	srv, _, scriptRoot := newTestServer(t)
	router := srv.Router()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "uploaded.sh")
	require.NoError(t, err)
	_, _ = part.Write([]byte("echo uploaded"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	data, err := os.ReadFile(filepath.Join(scriptRoot, "uploaded.sh"))
	require.NoError(t, err)
	assert.Equal(t, "echo uploaded", string(data))
}

func TestServer_Scan(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var result scanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Synced)
}

func TestServer_SettingsRoundTrip(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	postRec := doJSON(t, router, http.MethodPost, "/api/settings", map[string]string{"tg_bot_token": "abc"})
	require.Equal(t, http.StatusOK, postRec.Code)

	getRec := doJSON(t, router, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, getRec.Code)
	var settings map[string]string
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &settings))
	assert.Equal(t, "abc", settings["tg_bot_token"])
}

func TestServer_Healthz(t *testing.T) {
	srv, _, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body healthzBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
}
