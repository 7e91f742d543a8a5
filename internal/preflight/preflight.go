package preflight

import (
	"shelver/internal/config"
	"shelver/internal/registry"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config, reg *registry.Registry) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Watch directory", cfg.Paths.WatchDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if reg != nil {
		results = append(results,
			CheckCategoryDirs(reg, cfg.Paths.WatchDir),
			CheckSameFilesystem(reg, cfg.Paths.WatchDir),
		)
	}
	results = append(results, CheckInotifyWatches(defaultWatchesPath), CheckNotifications(cfg))
	return results
}
