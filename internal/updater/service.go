// Package updater contains the update orchestration engine: the scheduler
// driving periodic check cycles, the per-component check, the
// backup-fetch-write-verify transaction and the per-cycle summary.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"git.home.luguber.info/inful/plugwatch/internal/config"
	"git.home.luguber.info/inful/plugwatch/internal/history"
	"git.home.luguber.info/inful/plugwatch/internal/logfields"
	"git.home.luguber.info/inful/plugwatch/internal/metrics"
	"git.home.luguber.info/inful/plugwatch/internal/notify"
	"git.home.luguber.info/inful/plugwatch/internal/registry"
	"git.home.luguber.info/inful/plugwatch/internal/release"
	"git.home.luguber.info/inful/plugwatch/internal/version"
)

// State describes the orchestrator lifecycle.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateRunning       State = "running"
	StateStopped       State = "stopped"
)

const noLatestVersionMsg = "could not determine latest version"

// Resolver is the slice of the release client the scheduler needs.
type Resolver interface {
	Latest(ctx context.Context, owner, repo string) (*release.Release, error)
}

// Service is the update orchestrator. One instance owns its registry,
// summary and scheduling state; nothing is process-global, so tests can run
// isolated instances side by side.
type Service struct {
	registry *registry.Registry
	resolver Resolver
	tx       *Transaction
	summary  *CycleSummary

	notifier notify.Notifier
	reporter notify.Reporter
	store    *history.Store
	recorder metrics.Recorder
	logger   *slog.Logger

	mu            sync.Mutex
	state         State
	settings      config.Settings
	scheduler     gocron.Scheduler
	periodicJobID uuid.UUID
	runCtx        context.Context
	runCancel     context.CancelFunc
	lastCycle     *time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithNotifier sets the update-event collaborator.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithReporter sets the cycle-summary collaborator.
func WithReporter(r notify.Reporter) Option {
	return func(s *Service) { s.reporter = r }
}

// WithHistory sets the update-history store.
func WithHistory(store *history.Store) Option {
	return func(s *Service) { s.store = store }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates an orchestrator. It stays Uninitialized until the first
// registration arms the schedule.
func New(resolver Resolver, tx *Transaction, settings config.Settings, opts ...Option) *Service {
	s := &Service{
		registry: registry.New(),
		resolver: resolver,
		tx:       tx,
		summary:  NewCycleSummary(),
		settings: settings,
		state:    StateUninitialized,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry exposes the component table for read-side collaborators.
func (s *Service) Registry() *registry.Registry { return s.registry }

// State returns the current lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Register adds (or replaces) a tracked component. The first registration
// since process start or since Stop arms the schedule: a one-shot check
// after the initial delay, so remaining registrations can land first, plus
// the recurring cycle.
func (s *Service) Register(name, installedVersion, owner, repo, artifactPath string, logger *slog.Logger) (*registry.Component, error) {
	c := s.registry.Register(name, installedVersion, owner, repo, artifactPath, logger)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized || s.state == StateStopped {
		if err := s.initializeLocked(); err != nil {
			return c, fmt.Errorf("start scheduler: %w", err)
		}
	}
	s.recorder.SetComponentsTracked(s.registry.Len())
	return c, nil
}

func (s *Service) initializeLocked() error {
	s.state = StateInitializing
	s.runCtx, s.runCancel = context.WithCancel(context.Background())

	sched, err := gocron.NewScheduler()
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	s.scheduler = sched

	if _, err := sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(time.Now().Add(s.settings.InitialDelay))),
		gocron.NewTask(s.runScheduledCycle),
		gocron.WithName("initial-check"),
	); err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to create initial check job: %w", err)
	}

	job, err := sched.NewJob(
		gocron.DurationJob(s.settings.CheckInterval),
		gocron.NewTask(s.runScheduledCycle),
		gocron.WithName("periodic-check"),
	)
	if err != nil {
		s.state = StateStopped
		return fmt.Errorf("failed to create periodic check job: %w", err)
	}
	s.periodicJobID = job.ID()

	sched.Start()
	s.state = StateRunning
	s.logger.Info("Update scheduler started",
		"initial_delay", s.settings.InitialDelay,
		"check_interval", s.settings.CheckInterval)
	return nil
}

func (s *Service) runScheduledCycle() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	s.CheckAll(ctx)
}

// Stop cancels in-flight staggered group checks, shuts the scheduler down
// and marks the orchestrator Stopped. Registered components are kept.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StateInitializing {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	if s.runCancel != nil {
		s.runCancel()
	}
	sched := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			s.logger.Warn("Scheduler shutdown failed", "error", err)
		}
	}
	s.logger.Info("Update scheduler stopped")
}

// Restart stops the orchestrator and re-runs the initialization path.
func (s *Service) Restart() error {
	s.Stop()
	return s.ensureRunning()
}

// ensureRunning initializes the scheduler unless a concurrent Register
// already re-armed it between Stop releasing the lock and this call.
func (s *Service) ensureRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StateInitializing {
		return nil
	}
	return s.initializeLocked()
}

// Configure merge-applies new scheduling settings. In-flight cycles keep the
// settings they started with; only future scheduling changes.
func (s *Service) Configure(settings config.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.settings
	s.settings = settings

	if s.state == StateRunning && s.scheduler != nil && old.CheckInterval != settings.CheckInterval {
		if err := s.scheduler.RemoveJob(s.periodicJobID); err != nil {
			return fmt.Errorf("remove periodic job: %w", err)
		}
		job, err := s.scheduler.NewJob(
			gocron.DurationJob(settings.CheckInterval),
			gocron.NewTask(s.runScheduledCycle),
			gocron.WithName("periodic-check"),
		)
		if err != nil {
			return fmt.Errorf("reschedule periodic job: %w", err)
		}
		s.periodicJobID = job.ID()
		s.logger.Info("Check interval changed", "check_interval", settings.CheckInterval)
	}
	return nil
}

// RunContext returns the context scoping this run of the orchestrator; Stop
// cancels it. Callers triggering ad-hoc cycles derive from it so their work
// shares the scheduled cycles' lifecycle.
func (s *Service) RunContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx == nil {
		return context.Background()
	}
	return s.runCtx
}

func (s *Service) currentSettings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// CheckAll runs one full cycle: group components by repository, start each
// group at an increasing stagger offset, wait for all groups, then report
// and reset the summary. Stagger offsets are a lower bound on group start
// times only; slow groups may overlap with later ones.
func (s *Service) CheckAll(ctx context.Context) {
	settings := s.currentSettings()
	if !settings.Enabled {
		s.logger.Debug("Update checks disabled, skipping cycle")
		return
	}
	if s.registry.Len() == 0 {
		return
	}

	cycleID := uuid.NewString()
	log := s.logger.With(logfields.CycleID(cycleID))
	start := time.Now()

	groups := s.registry.GroupByRepo()
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	log.Info("Starting check cycle", "groups", len(keys))

	var cycleWG sync.WaitGroup
	for i, key := range keys {
		delay := settings.StaggerDelay * time.Duration(i)
		members := groups[key]

		cycleWG.Add(1)
		go func(key string, members []*registry.Component, delay time.Duration) {
			defer cycleWG.Done()
			if delay > 0 {
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			s.checkGroup(ctx, cycleID, key, members)
		}(key, members, delay)
	}
	cycleWG.Wait()

	s.recorder.ObserveCycleDuration(time.Since(start))
	s.updateGauges()

	now := time.Now()
	s.mu.Lock()
	s.lastCycle = &now
	s.mu.Unlock()

	s.summary.Report(ctx, s.reporter, log)
}

// checkGroup resolves the repository's latest release once and checks every
// member sequentially against it. A failed resolution still checks members
// so their error state is visible; they just learn "no latest version".
func (s *Service) checkGroup(ctx context.Context, cycleID, key string, members []*registry.Component) {
	if len(members) == 0 {
		return
	}
	owner, repo := members[0].Owner, members[0].Repo

	rel, err := s.resolver.Latest(ctx, owner, repo)
	if err != nil {
		rel = nil
	}
	s.recorder.IncResolution(key, rel != nil)

	for _, c := range members {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.checkComponent(ctx, cycleID, c, rel)
	}
}

// CheckOne runs a standalone check for a single component using a fresh
// resolver call, bypassing grouping. It shares the live cycle summary, so a
// component checked both ways in one cycle is still counted once.
func (s *Service) CheckOne(ctx context.Context, name string) error {
	c := s.registry.Get(name)
	if c == nil {
		return fmt.Errorf("component %q is not registered", name)
	}

	c.Lock()
	disabled := c.Disabled
	c.Unlock()
	if disabled {
		return fmt.Errorf("component %q is disabled", name)
	}

	rel, err := s.resolver.Latest(ctx, c.Owner, c.Repo)
	if err != nil {
		rel = nil
	}
	s.recorder.IncResolution(c.RepoKey(), rel != nil)

	s.checkComponent(ctx, uuid.NewString(), c, rel)
	s.updateGauges()
	return nil
}

// checkComponent compares installed vs latest and runs the transaction when
// the installed version is older. All record mutations happen under the
// component lock so a manual check racing a scheduled one cannot interleave
// writes to the same artifact.
func (s *Service) checkComponent(ctx context.Context, cycleID string, c *registry.Component, rel *release.Release) {
	c.Lock()
	defer c.Unlock()

	if c.Disabled {
		return
	}

	s.summary.MarkChecked(c.Name)
	s.recorder.IncCheck(c.Name)

	now := time.Now()
	c.LastChecked = &now

	if rel == nil {
		c.LastError = noLatestVersionMsg
		c.Logger.Warn("Check skipped", "reason", noLatestVersionMsg)
		return
	}

	c.LatestKnownVersion = rel.Tag

	cmp := version.Compare(c.InstalledVersion, rel.Tag)
	if cmp >= 0 {
		if cmp > 0 {
			c.Logger.Info("Installed version is newer than latest release",
				logfields.Installed(c.InstalledVersion), logfields.Latest(rel.Tag))
		}
		c.LastError = ""
		return
	}

	c.NeedsUpdate = true
	c.Logger.Info("Update available", logfields.Installed(c.InstalledVersion), logfields.Latest(rel.Tag))

	res := s.tx.Apply(ctx, c, rel.Tag)
	s.recordHistory(ctx, cycleID, c.Name, res)

	if !res.Updated {
		c.LastError = res.Err.Error()
		s.recorder.IncFailure(c.Name)
		c.Logger.Error("Update failed", logfields.Latest(rel.Tag), logfields.Error(res.Err))
		return
	}

	updatedAt := time.Now()
	c.InstalledVersion = rel.Tag
	c.NeedsUpdate = false
	c.LastUpdated = &updatedAt
	c.LastError = ""
	s.summary.MarkUpdated(c.Name)
	s.recorder.IncUpdate(c.Name)
	c.Logger.Info("Update applied", "old", res.OldVersion, "new", res.NewVersion, logfields.Backup(res.BackupPath))

	if s.notifier != nil {
		ev := notify.Event{
			Component:  c.Name,
			OldVersion: res.OldVersion,
			NewVersion: res.NewVersion,
			BackupPath: res.BackupPath,
			Notes:      rel.Notes,
		}
		if err := s.notifier.ComponentUpdated(ctx, ev); err != nil {
			c.Logger.Warn("Update notification failed", "error", err)
		}
	}
}

func (s *Service) recordHistory(ctx context.Context, cycleID, component string, res TxResult) {
	if s.store == nil {
		return
	}
	entry := history.Entry{
		CycleID:    cycleID,
		Component:  component,
		OldVersion: res.OldVersion,
		NewVersion: res.NewVersion,
		BackupPath: res.BackupPath,
		Updated:    res.Updated,
	}
	if res.Err != nil {
		entry.Error = res.Err.Error()
	}
	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.Warn("History write failed", logfields.Component(component), logfields.Error(err))
	}
}

// Enable re-includes a component in checks. Unknown names log a soft failure.
func (s *Service) Enable(name string) { s.setDisabled(name, false) }

// Disable excludes a component from automatic and manual checks without
// removing it from the registry.
func (s *Service) Disable(name string) { s.setDisabled(name, true) }

func (s *Service) setDisabled(name string, disabled bool) {
	if s.registry.Get(name) == nil {
		s.logger.Warn("Cannot toggle unknown component", "component", name)
		return
	}
	s.registry.SetDisabled(name, disabled)
	s.updateGauges()
}

func (s *Service) updateGauges() {
	available := 0
	for _, c := range s.registry.List() {
		c.Lock()
		if c.NeedsUpdate {
			available++
		}
		c.Unlock()
	}
	s.recorder.SetComponentsTracked(s.registry.Len())
	s.recorder.SetUpdatesAvailable(available)
}
