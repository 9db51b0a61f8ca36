package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/plugwatch/internal/config"
	"git.home.luguber.info/inful/plugwatch/internal/daemon"
	"git.home.luguber.info/inful/plugwatch/internal/updater"
)

// runCheck performs a one-shot check in-process: a full cycle, or a single
// component when a name is given.
func runCheck(cfg *config.Config, logger *slog.Logger, component string) error {
	// One-shot runs want no admin server and no config watcher.
	oneShot := *cfg
	oneShot.Server.Enabled = false

	d, err := daemon.New(&oneShot, "", logger)
	if err != nil {
		return err
	}
	defer d.Close()
	svc := d.Service()

	for _, comp := range cfg.Components {
		if _, err := svc.Register(comp.Name, comp.Version, comp.Owner, comp.Repo, comp.Path, logger); err != nil {
			return err
		}
		if comp.Disabled {
			svc.Disable(comp.Name)
		}
	}

	ctx := context.Background()
	if component != "" {
		if err := svc.CheckOne(ctx, component); err != nil {
			return err
		}
	} else {
		svc.CheckAll(ctx)
	}

	printSnapshot(svc.Status())
	return nil
}

// runStatus queries the running daemon's admin API and prints the table.
func runStatus(cfg *config.Config) error {
	if !cfg.Server.Enabled {
		return fmt.Errorf("the admin server is disabled in the configuration; status needs a running daemon")
	}

	addr := cfg.Server.Listen
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		return fmt.Errorf("query daemon status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	var snap updater.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fmt.Errorf("decode daemon status: %w", err)
	}

	printSnapshot(snap)
	return nil
}

func printSnapshot(snap updater.Snapshot) {
	fmt.Printf("State: %s   Components: %d   Updates available: %d\n",
		snap.State, snap.TotalComponents, snap.UpdatesAvailable)
	if snap.LastCheck != nil {
		fmt.Printf("Last check: %s\n", snap.LastCheck.Format(time.RFC3339))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINSTALLED\tLATEST\tNEEDS UPDATE\tDISABLED\tERROR")
	for _, c := range snap.Components {
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%v\t%s\n",
			c.Name, c.InstalledVersion, orDash(c.LatestVersion), c.NeedsUpdate, c.Disabled, orDash(c.Error))
	}
	_ = w.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
