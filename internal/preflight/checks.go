package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"shelver/internal/config"
	"shelver/internal/registry"
)

const (
	defaultWatchesPath = "/proc/sys/fs/inotify/max_user_watches"
	minUserWatches     = 8192
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCategoryDirs reports category directories under base that are missing
// or shadowed by a regular file. Missing directories pass; they are created
// when watching starts.
func CheckCategoryDirs(reg *registry.Registry, base string) Result {
	const name = "Category directories"

	var missing, blocked []string
	for cat := range reg.Categories() {
		info, err := os.Stat(filepath.Join(base, cat))
		switch {
		case os.IsNotExist(err):
			missing = append(missing, cat)
		case err != nil:
			blocked = append(blocked, fmt.Sprintf("%s (%v)", cat, err))
		case !info.IsDir():
			blocked = append(blocked, cat+" (not a directory)")
		}
	}
	if len(blocked) > 0 {
		return Result{Name: name, Detail: "blocked: " + strings.Join(blocked, ", ")}
	}
	if len(missing) > 0 {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d of %d present; created on start", reg.Len()-len(missing), reg.Len())}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("all %d present", reg.Len())}
}

// CheckSameFilesystem verifies that existing category directories share a
// device with base, since moves never copy across filesystems.
func CheckSameFilesystem(reg *registry.Registry, base string) Result {
	const name = "Single filesystem"

	var baseStat unix.Stat_t
	if err := unix.Stat(base, &baseStat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("stat %s: %v", base, err)}
	}
	var foreign []string
	for cat := range reg.Categories() {
		var st unix.Stat_t
		if err := unix.Stat(filepath.Join(base, cat), &st); err != nil {
			continue
		}
		if st.Dev != baseStat.Dev {
			foreign = append(foreign, cat)
		}
	}
	if len(foreign) > 0 {
		return Result{Name: name, Detail: "on another filesystem (moves will fail): " + strings.Join(foreign, ", ")}
	}
	return Result{Name: name, Passed: true, Detail: "category directories share the watch directory's filesystem"}
}

// CheckInotifyWatches reads the kernel's per-user inotify watch limit from
// path. The check is best-effort and passes when the file is unavailable.
func CheckInotifyWatches(path string) Result {
	const name = "inotify watches"

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Name: name, Passed: true, Detail: "limit unknown"}
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return Result{Name: name, Passed: true, Detail: "limit unreadable"}
	}
	if limit < minUserWatches {
		return Result{Name: name, Detail: fmt.Sprintf("max_user_watches=%d (raise fs.inotify.max_user_watches for deep trees)", limit)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("max_user_watches=%d", limit)}
}

// CheckNotifications summarizes the ntfy configuration without contacting it.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil || cfg.Notifications.NtfyTopic == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: cfg.Notifications.NtfyTopic}
}
