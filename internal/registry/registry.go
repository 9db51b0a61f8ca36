// Package registry tracks the components managed by the update daemon.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/plugwatch/internal/logfields"
)

// Component is the mutable record for one tracked component. The registry
// owns every record; callers get pointers and must hold the record's lock
// while checking or updating it so a manual check racing a scheduled one
// never interleaves writes to the same artifact.
type Component struct {
	Name             string
	InstalledVersion string
	Owner            string
	Repo             string
	ArtifactPath     string

	Disabled    bool
	NeedsUpdate bool

	LatestKnownVersion string
	LastChecked        *time.Time
	LastUpdated        *time.Time
	LastError          string

	Logger *slog.Logger

	mu sync.Mutex
}

// Lock acquires the per-component check/update lock.
func (c *Component) Lock() { c.mu.Lock() }

// Unlock releases the per-component check/update lock.
func (c *Component) Unlock() { c.mu.Unlock() }

// RepoKey returns the grouping key shared by components from one repository.
func (c *Component) RepoKey() string {
	return c.Owner + "/" + c.Repo
}

// Registry is an in-memory table of components keyed by unique name.
type Registry struct {
	mu         sync.RWMutex
	components map[string]*Component
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{components: make(map[string]*Component)}
}

// Register inserts a component record, overwriting any existing record under
// the same name, and returns it. Records start with no check history.
func (r *Registry) Register(name, version, owner, repo, artifactPath string, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Component{
		Name:             name,
		InstalledVersion: version,
		Owner:            owner,
		Repo:             repo,
		ArtifactPath:     artifactPath,
		Logger:           logger.With(logfields.Component(name)),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[name] = c
	return c
}

// Get returns the record for name, or nil when it is not registered.
func (r *Registry) Get(name string) *Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.components[name]
}

// List returns a snapshot of all records. Order is not significant.
func (r *Registry) List() []*Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Component, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c)
	}
	return out
}

// Len returns the number of registered components.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// SetDisabled toggles a component's participation in checks. Unknown names
// are ignored; absence is a soft failure the caller may log.
func (r *Registry) SetDisabled(name string, disabled bool) {
	r.mu.RLock()
	c := r.components[name]
	r.mu.RUnlock()
	if c == nil {
		return
	}
	c.Lock()
	c.Disabled = disabled
	c.Unlock()
}

// GroupByRepo partitions all non-disabled components by owner/repo key.
// The grouping is recomputed per cycle and never persisted; it only exists
// so one cycle resolves each repository's latest release once.
func (r *Registry) GroupByRepo() map[string][]*Component {
	groups := make(map[string][]*Component)
	for _, c := range r.List() {
		c.Lock()
		disabled := c.Disabled
		c.Unlock()
		if disabled {
			continue
		}
		key := c.RepoKey()
		groups[key] = append(groups[key], c)
	}
	return groups
}
