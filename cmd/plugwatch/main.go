package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/plugwatch/internal/config"
	"git.home.luguber.info/inful/plugwatch/internal/daemon"
	"git.home.luguber.info/inful/plugwatch/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Daemon struct {
	} `cmd:"" help:"Run the update daemon: periodic checks, admin API, config watching"`

	Check struct {
		Component string `arg:"" optional:"" help:"Check a single component instead of a full cycle"`
	} `cmd:"" help:"Run one check cycle (or one component check) and exit"`

	Status struct {
	} `cmd:"" help:"Print the component status table from the running daemon"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", CLI.Config)
		return
	case "version":
		fmt.Printf("plugwatch %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)

	switch ctx.Command() {
	case "daemon":
		if err := runDaemon(cfg, logger); err != nil {
			logger.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "check", "check <component>":
		if err := runCheck(cfg, logger, CLI.Check.Component); err != nil {
			logger.Error("Check failed", "error", err)
			os.Exit(1)
		}
	case "status":
		if err := runStatus(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", ctx.Command())
		os.Exit(1)
	}
}

func setupLogging(cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level.SlogLevel()
	if CLI.Verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func runDaemon(cfg *config.Config, logger *slog.Logger) error {
	d, err := daemon.New(cfg, CLI.Config, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting plugwatch daemon", "version", version.Version, "components", len(cfg.Components))
	return d.Run(ctx)
}
