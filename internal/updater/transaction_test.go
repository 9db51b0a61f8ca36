package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/plugwatch/internal/registry"
)

type fakeFetcher struct {
	body    []byte
	err     error
	relPath string
}

func (f *fakeFetcher) FetchArtifact(_ context.Context, _, _, _ string, relPath string) ([]byte, error) {
	f.relPath = relPath
	return f.body, f.err
}

func newTestComponent(t *testing.T, workDir, name, content string) *registry.Component {
	t.Helper()
	pluginDir := filepath.Join(workDir, "Plugins")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	artifact := filepath.Join(pluginDir, name+".dll")
	require.NoError(t, os.WriteFile(artifact, []byte(content), 0o644))
	return registry.New().Register(name, "v1.0.0", "acme", name, artifact, nil)
}

func TestApplySuccess(t *testing.T) {
	workDir := t.TempDir()
	c := newTestComponent(t, workDir, "widget", "old-bytes")
	fetcher := &fakeFetcher{body: []byte("new-bytes")}

	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.5.0")
	require.NoError(t, res.Err)
	assert.True(t, res.Updated)
	assert.Equal(t, "v1.0.0", res.OldVersion)
	assert.Equal(t, "v1.5.0", res.NewVersion)

	// Remote path is working-directory relative with forward slashes.
	assert.Equal(t, "Plugins/widget.dll", fetcher.relPath)

	// Artifact replaced.
	got, err := os.ReadFile(c.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-bytes"), got)

	// Backup holds the previous content at the documented location.
	wantBackup := filepath.Join(workDir, BackupDirName, "widget", "widget.dll.backup")
	assert.Equal(t, wantBackup, res.BackupPath)
	backup, err := os.ReadFile(wantBackup)
	require.NoError(t, err)
	assert.Equal(t, []byte("old-bytes"), backup)
}

func TestApplyFetchFailureLeavesArtifactUntouched(t *testing.T) {
	workDir := t.TempDir()
	c := newTestComponent(t, workDir, "widget", "old-bytes")
	fetcher := &fakeFetcher{err: errors.New("remote unavailable")}

	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.5.0")
	assert.False(t, res.Updated)
	require.Error(t, res.Err)

	got, err := os.ReadFile(c.ArtifactPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("old-bytes"), got, "failed fetch must not alter the artifact")

	_, err = os.Stat(filepath.Join(workDir, BackupDirName))
	assert.True(t, os.IsNotExist(err), "no backup should exist after a failed fetch")
}

func TestApplyBackupFailureDegrades(t *testing.T) {
	workDir := t.TempDir()
	// Component whose artifact does not exist yet: backup cannot read it,
	// but the update should still land.
	artifact := filepath.Join(workDir, "Plugins", "fresh.dll")
	require.NoError(t, os.MkdirAll(filepath.Dir(artifact), 0o755))
	c := registry.New().Register("fresh", "", "acme", "fresh", artifact, nil)
	fetcher := &fakeFetcher{body: []byte("new-bytes")}

	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.0.0")
	require.NoError(t, res.Err)
	assert.True(t, res.Updated)
	assert.Empty(t, res.BackupPath)

	got, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Equal(t, []byte("new-bytes"), got)
}

func TestApplyVerifyMismatch(t *testing.T) {
	workDir := t.TempDir()
	// /dev/null accepts the write but reads back empty, so the written
	// bytes can never match the fetched body.
	c := registry.New().Register("widget", "v1.0.0", "acme", "widget", "/dev/null", nil)
	fetcher := &fakeFetcher{body: []byte("new-bytes")}

	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.5.0")
	assert.False(t, res.Updated)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "verification mismatch")
	assert.Equal(t, "v1.0.0", c.InstalledVersion, "a failed verify must not advance the installed version")
}

func TestApplyVerifyReadbackFailure(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions do not restrict root")
	}
	workDir := t.TempDir()
	c := newTestComponent(t, workDir, "widget", "old-bytes")
	// Write-only artifact: the overwrite lands but the verify read fails.
	require.NoError(t, os.Chmod(c.ArtifactPath, 0o200))
	fetcher := &fakeFetcher{body: []byte("new-bytes")}

	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.5.0")
	assert.False(t, res.Updated)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "verify artifact")
}

func TestApplyWriteFailure(t *testing.T) {
	workDir := t.TempDir()
	// An artifact path that is actually a directory: the overwrite fails.
	artifact := filepath.Join(workDir, "Plugins", "widget.dll")
	require.NoError(t, os.MkdirAll(artifact, 0o755))
	c := registry.New().Register("widget", "v1.0.0", "acme", "widget", artifact, nil)

	fetcher := &fakeFetcher{body: []byte("new-bytes")}
	tx, err := NewTransaction(fetcher, workDir)
	require.NoError(t, err)

	res := tx.Apply(context.Background(), c, "v1.5.0")
	assert.False(t, res.Updated)
	require.Error(t, res.Err)
}
