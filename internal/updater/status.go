package updater

import (
	"sort"
	"time"
)

// ComponentStatus is the per-component slice of a status snapshot.
type ComponentStatus struct {
	Name             string     `json:"name"`
	InstalledVersion string     `json:"installed_version"`
	LatestVersion    string     `json:"latest_version,omitempty"`
	NeedsUpdate      bool       `json:"needs_update"`
	Disabled         bool       `json:"disabled"`
	LastChecked      *time.Time `json:"last_checked,omitempty"`
	LastUpdated      *time.Time `json:"last_updated,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the orchestrator for status queries.
type Snapshot struct {
	State            State             `json:"state"`
	TotalComponents  int               `json:"total_components"`
	LastCheck        *time.Time        `json:"last_check,omitempty"`
	UpdatesAvailable int               `json:"updates_available"`
	Components       []ComponentStatus `json:"components"`
}

// Status assembles a snapshot of every registered component, sorted by name.
func (s *Service) Status() Snapshot {
	s.mu.Lock()
	snap := Snapshot{
		State:     s.state,
		LastCheck: s.lastCycle,
	}
	s.mu.Unlock()

	for _, c := range s.registry.List() {
		c.Lock()
		cs := ComponentStatus{
			Name:             c.Name,
			InstalledVersion: c.InstalledVersion,
			LatestVersion:    c.LatestKnownVersion,
			NeedsUpdate:      c.NeedsUpdate,
			Disabled:         c.Disabled,
			LastChecked:      c.LastChecked,
			LastUpdated:      c.LastUpdated,
			Error:            c.LastError,
		}
		c.Unlock()
		// Disabled components are skipped by cycles, so their pending
		// updates do not count as actionable.
		if cs.NeedsUpdate && !cs.Disabled {
			snap.UpdatesAvailable++
		}
		snap.Components = append(snap.Components, cs)
	}
	snap.TotalComponents = len(snap.Components)
	sort.Slice(snap.Components, func(i, j int) bool {
		return snap.Components[i].Name < snap.Components[j].Name
	})
	return snap
}
