package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyComponent = "component"
	KeyRepo      = "repository"
	KeyCycleID   = "cycle_id"
	KeyInstalled = "installed"
	KeyLatest    = "latest"
	KeyBackup    = "backup"
	KeyError     = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Component(name string) slog.Attr { return slog.String(KeyComponent, name) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func CycleID(id string) slog.Attr     { return slog.String(KeyCycleID, id) }
func Installed(v string) slog.Attr    { return slog.String(KeyInstalled, v) }
func Latest(v string) slog.Attr       { return slog.String(KeyLatest, v) }
func Backup(path string) slog.Attr    { return slog.String(KeyBackup, path) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
