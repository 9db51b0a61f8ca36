// Package daemon wires the update orchestrator together with its
// collaborators: release client, notifiers, history store, metrics, admin
// server and config watcher.
package daemon

import (
	"context"
	"log/slog"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/plugwatch/internal/config"
	"git.home.luguber.info/inful/plugwatch/internal/history"
	"git.home.luguber.info/inful/plugwatch/internal/metrics"
	"git.home.luguber.info/inful/plugwatch/internal/notify"
	"git.home.luguber.info/inful/plugwatch/internal/release"
	"git.home.luguber.info/inful/plugwatch/internal/server"
	"git.home.luguber.info/inful/plugwatch/internal/updater"
)

// Daemon is the composed long-running process.
type Daemon struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger

	service  *updater.Service
	store    *history.Store
	natsSink *notify.NATSNotifier
	admin    *server.Server
	watcher  *ConfigWatcher
}

// New builds the daemon from configuration. Nothing starts running yet;
// Run does that.
func New(cfg *config.Config, configPath string, logger *slog.Logger) (*Daemon, error) {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Daemon{cfg: cfg, configPath: configPath, logger: logger}

	client := release.NewClient(cfg.Source.APIBaseURL, cfg.Source.RawBaseURL,
		release.WithToken(cfg.Source.Token),
		release.WithLogger(logger.With("subsystem", "release")),
	)

	tx, err := updater.NewTransaction(client, "")
	if err != nil {
		return nil, err
	}

	settings, err := cfg.Updates.Settings()
	if err != nil {
		return nil, err
	}

	notifiers := notify.Multi{notify.LogNotifier{Logger: logger}}
	var reporter notify.Reporter = notify.LogNotifier{Logger: logger}
	if cfg.Notify.NATS.URL != "" {
		sink, err := notify.NewNATSNotifier(cfg.Notify.NATS.URL, cfg.Notify.NATS.Subject, logger)
		if err != nil {
			// Updates matter more than their announcements.
			logger.Error("NATS notifier unavailable, continuing without it", "error", err)
		} else {
			d.natsSink = sink
			notifiers = append(notifiers, sink)
			reporter = sink
		}
	}

	opts := []updater.Option{
		updater.WithLogger(logger.With("subsystem", "updater")),
		updater.WithNotifier(notifiers),
		updater.WithReporter(reporter),
	}

	var metricsHandler *metrics.PrometheusRecorder
	if cfg.Server.Enabled {
		metricsHandler = metrics.NewPrometheusRecorder(prom.NewRegistry())
		opts = append(opts, updater.WithRecorder(metricsHandler))
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		d.store = store
		opts = append(opts, updater.WithHistory(store))
	}

	d.service = updater.New(client, tx, settings, opts...)

	if cfg.Server.Enabled {
		d.admin = server.New(d.service, d.store, metricsHandler.Handler(), logger.With("subsystem", "admin"))
	}

	return d, nil
}

// Service exposes the orchestrator, e.g. for CLI one-shot commands.
func (d *Daemon) Service() *updater.Service { return d.service }

// Run registers all configured components, starts the admin server and the
// config watcher, and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.registerComponents(d.cfg)

	if d.admin != nil {
		if err := d.admin.Start(d.cfg.Server.Listen); err != nil {
			return err
		}
	}

	if d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.logger, d.applyConfig)
		if err != nil {
			d.logger.Warn("Config watcher unavailable", "error", err)
		} else {
			d.watcher = watcher
			if err := watcher.Start(ctx); err != nil {
				d.logger.Warn("Config watcher failed to start", "error", err)
			}
		}
	}

	<-ctx.Done()
	d.Close()
	return nil
}

func (d *Daemon) registerComponents(cfg *config.Config) {
	for _, comp := range cfg.Components {
		if _, err := d.service.Register(comp.Name, comp.Version, comp.Owner, comp.Repo, comp.Path, d.logger); err != nil {
			d.logger.Error("Component registration failed", "component", comp.Name, "error", err)
			continue
		}
		if comp.Disabled {
			d.service.Disable(comp.Name)
		}
	}
	d.logger.Info("Components registered", "count", len(cfg.Components))
}

// applyConfig handles a config reload: scheduling settings are merge-applied
// and newly declared components are registered. Running cycles finish with
// the settings they started with.
func (d *Daemon) applyConfig(cfg *config.Config) {
	settings, err := cfg.Updates.Settings()
	if err != nil {
		d.logger.Error("Reloaded config has invalid settings, keeping previous", "error", err)
		return
	}
	if err := d.service.Configure(settings); err != nil {
		d.logger.Error("Failed to apply reloaded settings", "error", err)
		return
	}

	for _, comp := range cfg.Components {
		if d.service.Registry().Get(comp.Name) == nil {
			if _, err := d.service.Register(comp.Name, comp.Version, comp.Owner, comp.Repo, comp.Path, d.logger); err != nil {
				d.logger.Error("Component registration failed", "component", comp.Name, "error", err)
			}
		}
		d.service.Registry().SetDisabled(comp.Name, comp.Disabled)
	}
	d.cfg = cfg
}

// Close stops the orchestrator and releases every resource New opened:
// config watcher, admin server, NATS connection and history store. Run
// calls it on context cancellation; one-shot callers use it directly.
func (d *Daemon) Close() {
	d.logger.Info("Shutting down")
	if d.watcher != nil {
		d.watcher.Stop()
	}
	d.service.Stop()
	if d.admin != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.admin.Shutdown(ctx); err != nil {
			d.logger.Warn("Admin server shutdown failed", "error", err)
		}
	}
	if d.natsSink != nil {
		d.natsSink.Close()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			d.logger.Warn("History store close failed", "error", err)
		}
	}
}
