package updater

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/plugwatch/internal/registry"
)

// BackupDirName is the directory under the working directory that holds one
// backup generation per component.
const BackupDirName = "BACKUP-Plugins"

// ArtifactFetcher is the slice of the release client the transaction needs.
type ArtifactFetcher interface {
	FetchArtifact(ctx context.Context, owner, repo, tag, relPath string) ([]byte, error)
}

// TxResult is the outcome of one update transaction.
type TxResult struct {
	Updated    bool
	OldVersion string
	NewVersion string
	BackupPath string
	Err        error
}

// Transaction applies updates: fetch the artifact at the target version, back
// up the installed file, overwrite it, and verify the written bytes.
//
// Two behaviors are deliberate trade-offs, not bugs to harden away: a failed
// backup degrades to "no backup" instead of aborting (the operator prefers
// the update landing over guaranteed rollback), and a verify mismatch fails
// the transaction without restoring the backup, leaving a partially applied
// file the operator must look at.
type Transaction struct {
	fetcher ArtifactFetcher
	workDir string
}

// NewTransaction creates a transaction runner. workDir anchors both the
// remote-relative artifact path and the backup directory; empty means the
// process working directory.
func NewTransaction(fetcher ArtifactFetcher, workDir string) (*Transaction, error) {
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		workDir = wd
	}
	return &Transaction{fetcher: fetcher, workDir: workDir}, nil
}

// Apply runs the backup-fetch-write-verify sequence for one component. The
// caller must hold the component's lock. Registry fields are not touched
// here; the scheduler applies the result.
func (t *Transaction) Apply(ctx context.Context, c *registry.Component, targetVersion string) TxResult {
	res := TxResult{OldVersion: c.InstalledVersion, NewVersion: targetVersion}

	relPath, err := t.remotePath(c.ArtifactPath)
	if err != nil {
		res.Err = fmt.Errorf("resolve artifact path: %w", err)
		return res
	}

	body, err := t.fetcher.FetchArtifact(ctx, c.Owner, c.Repo, targetVersion, relPath)
	if err != nil {
		res.Err = fmt.Errorf("fetch artifact: %w", err)
		return res
	}

	// Backup failure is non-fatal; the update still proceeds.
	backupPath, err := t.backup(c)
	if err != nil {
		c.Logger.Warn("Backup failed, updating without one", "error", err)
	} else {
		res.BackupPath = backupPath
	}

	mode := artifactMode(c.ArtifactPath)
	if err := os.WriteFile(c.ArtifactPath, body, mode); err != nil {
		res.Err = fmt.Errorf("write artifact: %w", err)
		return res
	}

	written, err := os.ReadFile(c.ArtifactPath)
	if err != nil {
		res.Err = fmt.Errorf("verify artifact: %w", err)
		return res
	}
	if !bytes.Equal(written, body) {
		// The file is already altered; there is no automatic recovery.
		res.Err = fmt.Errorf("verification mismatch: written artifact differs from fetched content, %s may be partially applied", c.ArtifactPath)
		return res
	}

	res.Updated = true
	return res
}

// remotePath converts the local artifact path into the forward-slash path
// used on the raw host, relative to the working directory.
func (t *Transaction) remotePath(artifactPath string) (string, error) {
	abs := artifactPath
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(t.workDir, artifactPath)
	}
	rel, err := filepath.Rel(t.workDir, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// backup copies the installed artifact to
// <workDir>/BACKUP-Plugins/<component>/<base>.backup, replacing the previous
// backup. Only one generation is kept.
func (t *Transaction) backup(c *registry.Component) (string, error) {
	current, err := os.ReadFile(c.ArtifactPath)
	if err != nil {
		return "", fmt.Errorf("read installed artifact: %w", err)
	}

	dir := filepath.Join(t.workDir, BackupDirName, c.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	backupPath := filepath.Join(dir, filepath.Base(c.ArtifactPath)+".backup")
	if err := os.WriteFile(backupPath, current, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}
	return backupPath, nil
}

func artifactMode(path string) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
