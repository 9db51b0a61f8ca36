package updater

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/plugwatch/internal/notify"
)

// CycleSummary accumulates which components were checked and updated across
// the staggered group checks making up one cycle. Marks are idempotent per
// name, so a component checked by both the scheduled cycle and a manual
// trigger is counted once. Report drains and resets the summary.
type CycleSummary struct {
	mu      sync.Mutex
	checked map[string]bool
	updated map[string]bool
	// insertion order, for stable reporting
	checkedNames []string
	updatedNames []string
}

// NewCycleSummary returns an empty summary.
func NewCycleSummary() *CycleSummary {
	return &CycleSummary{
		checked: make(map[string]bool),
		updated: make(map[string]bool),
	}
}

// MarkChecked records that name was checked this cycle.
func (s *CycleSummary) MarkChecked(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.checked[name] {
		s.checked[name] = true
		s.checkedNames = append(s.checkedNames, name)
	}
}

// MarkUpdated records that name was updated this cycle.
func (s *CycleSummary) MarkUpdated(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.updated[name] {
		s.updated[name] = true
		s.updatedNames = append(s.updatedNames, name)
	}
}

// CheckedCount returns how many distinct components were checked so far.
func (s *CycleSummary) CheckedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.checkedNames)
}

// UpdatedCount returns how many distinct components were updated so far.
func (s *CycleSummary) UpdatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updatedNames)
}

// Report emits one consolidated cycle report to the reporter and resets the
// summary to empty. An empty cycle still reports, so operators can see the
// daemon is alive.
func (s *CycleSummary) Report(ctx context.Context, reporter notify.Reporter, logger *slog.Logger) {
	s.mu.Lock()
	report := notify.CycleReport{
		Checked:       s.checkedNames,
		Updated:       s.updatedNames,
		RestartNeeded: len(s.updatedNames) > 0,
	}
	s.checked = make(map[string]bool)
	s.updated = make(map[string]bool)
	s.checkedNames = nil
	s.updatedNames = nil
	s.mu.Unlock()

	if reporter == nil {
		reporter = notify.LogNotifier{Logger: logger}
	}
	if err := reporter.CycleCompleted(ctx, report); err != nil {
		logger.Warn("Cycle report delivery failed", "error", err)
	}
}
