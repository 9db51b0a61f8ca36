package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugwatch/internal/config"
	"git.home.luguber.info/inful/plugwatch/internal/release"
	"git.home.luguber.info/inful/plugwatch/internal/updater"
)

type staticResolver struct{ tag string }

func (r staticResolver) Latest(context.Context, string, string) (*release.Release, error) {
	if r.tag == "" {
		return nil, release.ErrNoRelease
	}
	return &release.Release{Tag: r.tag}, nil
}

type staticFetcher struct{ body []byte }

func (f staticFetcher) FetchArtifact(context.Context, string, string, string, string) ([]byte, error) {
	return f.body, nil
}

func newTestServer(t *testing.T, tag string) (*Server, *updater.Service) {
	t.Helper()
	workDir := t.TempDir()
	tx, err := updater.NewTransaction(staticFetcher{body: []byte("new")}, workDir)
	require.NoError(t, err)

	settings := config.Settings{Enabled: true, CheckInterval: time.Hour, InitialDelay: time.Hour}
	svc := updater.New(staticResolver{tag: tag}, tx, settings)
	t.Cleanup(svc.Stop)

	artifact := filepath.Join(workDir, "Plugins", "alpha.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	require.NoError(t, os.WriteFile(artifact, []byte("old"), 0o644))
	_, err = svc.Register("alpha", "v1.0.0", "acme", "widgets", artifact, nil)
	require.NoError(t, err)

	return New(svc, nil, nil, nil), svc
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, "v1.5.0")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, string(updater.StateRunning), body["state"])
}

func TestStatusEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, "v1.5.0")
	require.NoError(t, svc.CheckOne(context.Background(), "alpha"))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap updater.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.TotalComponents)
	require.Len(t, snap.Components, 1)
	assert.Equal(t, "v1.5.0", snap.Components[0].InstalledVersion)
}

func TestStatusRejectsPost(t *testing.T) {
	srv, _ := newTestServer(t, "v1.5.0")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/status", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestComponentCheckEndpoint(t *testing.T) {
	srv, svc := newTestServer(t, "v2.0.0")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/components/alpha/check", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v2.0.0", svc.Registry().Get("alpha").InstalledVersion)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/components/missing/check", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestComponentEnableDisable(t *testing.T) {
	srv, svc := newTestServer(t, "v2.0.0")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/components/alpha/disable", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, svc.Registry().Get("alpha").Disabled)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/components/alpha/enable", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, svc.Registry().Get("alpha").Disabled)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/components/alpha/explode", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckAllEndpointAccepted(t *testing.T) {
	srv, _ := newTestServer(t, "v1.0.0")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
}
