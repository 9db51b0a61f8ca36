// Package notify delivers update events to external collaborators. The
// orchestrator works without any notifier configured; updates then apply
// silently.
package notify

import (
	"bytes"
	"context"
	"log/slog"

	"github.com/yuin/goldmark"
)

// Event describes one successfully applied component update.
type Event struct {
	Component  string `json:"component"`
	OldVersion string `json:"old_version"`
	NewVersion string `json:"new_version"`
	BackupPath string `json:"backup_path,omitempty"`
	Notes      string `json:"notes,omitempty"`
	NotesHTML  string `json:"notes_html,omitempty"`
}

// Notifier receives update events. Implementations must tolerate failure
// without affecting the update itself; the orchestrator logs and moves on.
type Notifier interface {
	ComponentUpdated(ctx context.Context, ev Event) error
}

// CycleReport summarizes one completed check cycle.
type CycleReport struct {
	Checked       []string `json:"checked"`
	Updated       []string `json:"updated"`
	RestartNeeded bool     `json:"restart_needed"`
}

// Reporter receives end-of-cycle summaries. Optional, like Notifier.
type Reporter interface {
	CycleCompleted(ctx context.Context, report CycleReport) error
}

// RenderNotes converts markdown release notes to HTML for Event.NotesHTML.
// Render failures degrade to an empty string; notes are best-effort garnish.
func RenderNotes(notes string) string {
	if notes == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := goldmark.New().Convert([]byte(notes), &buf); err != nil {
		return ""
	}
	return buf.String()
}

// LogNotifier writes events and cycle reports to the log. It is the default
// collaborator so updates are always visible somewhere.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}

func (n LogNotifier) ComponentUpdated(_ context.Context, ev Event) error {
	n.logger().Info("Component updated",
		"component", ev.Component,
		"old_version", ev.OldVersion,
		"new_version", ev.NewVersion,
		"backup", ev.BackupPath)
	return nil
}

func (n LogNotifier) CycleCompleted(_ context.Context, report CycleReport) error {
	log := n.logger()
	log.Info("Update cycle completed",
		"checked", len(report.Checked),
		"updated", len(report.Updated),
		"checked_components", report.Checked,
		"updated_components", report.Updated)
	if report.RestartNeeded {
		log.Warn("Updates were applied; restart the host process to load them")
	}
	return nil
}

// Multi fans out to several notifiers. Errors from one do not stop the rest;
// the first error is returned.
type Multi []Notifier

func (m Multi) ComponentUpdated(ctx context.Context, ev Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.ComponentUpdated(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
