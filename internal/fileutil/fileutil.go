// Package fileutil holds the filesystem primitives behind every move:
// an atomic no-clobber rename, cross-device tagging and the hidden-name test.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// HiddenPrefix marks a hidden entry.
const HiddenPrefix = "."

var (
	renameFunc          = os.Rename
	renameNoReplaceFunc = renameNoReplace

	errNoReplaceUnsupported = errors.New("no-replace rename unsupported")
)

// CrossDeviceError reports a rename that failed because source and
// destination live on different filesystems. Files are never copied.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cross-device move %q -> %q: source and destination must share a filesystem: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err carries a CrossDeviceError.
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// IsHidden reports whether the base name of path starts with HiddenPrefix.
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), HiddenPrefix)
}

// EnsureDir creates dir and any missing parents. Existing directories are left alone.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// MoveNoClobber renames src to dst without ever replacing an existing dst.
//
// When dst is taken the returned error matches fs.ErrExist and src is left
// untouched. A vanished src matches fs.ErrNotExist. On platforms or
// filesystems without an atomic no-replace rename the existence check and
// the rename are two steps; callers serialize moves into one directory.
func MoveNoClobber(src, dst string) error {
	err := renameNoReplaceFunc(src, dst)
	if errors.Is(err, errNoReplaceUnsupported) {
		err = checkThenRename(src, dst)
	}
	if err != nil {
		if isEXDEV(err) {
			return &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return err
	}
	return nil
}

func checkThenRename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return renameFunc(src, dst)
}

func isEXDEV(err error) bool {
	if errors.Is(err, syscall.EXDEV) {
		return true
	}
	var le *os.LinkError
	return errors.As(err, &le) && errors.Is(le.Err, syscall.EXDEV)
}
