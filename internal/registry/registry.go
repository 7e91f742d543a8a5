// Package registry maps file extensions to the category that owns them.
//
// A Registry is built once from an ordered list of categories and never
// mutated afterwards, so it can be shared by the classifier, the backlog
// sweep and the watcher callback without locking. When the same extension
// is listed under more than one category the first-registered category
// owns it; later claims are kept as Shadowed entries for reporting.
package registry

import (
	"errors"
	"fmt"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

var (
	// ErrDuplicateCategory is returned when two categories share a name.
	ErrDuplicateCategory = errors.New("duplicate category")
	// ErrInvalidCategory is returned for names that cannot be used as a directory.
	ErrInvalidCategory = errors.New("invalid category")
)

// Category is a named bucket of extensions and its destination directory name.
type Category struct {
	Name       string
	Extensions []string
}

// Shadow records an extension claim that lost the first-registered tie-break.
type Shadow struct {
	Extension string
	Owner     string
	Shadowed  string
}

// Registry answers which category owns an extension.
type Registry struct {
	order    []Category
	owners   map[string]string
	shadowed []Shadow
}

var folder = cases.Fold()

// NormalizeExtension trims, drops a leading dot and case-folds ext.
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return ""
	}
	return folder.String(ext)
}

// Extension returns the folded extension of a filename: the text after the
// last dot of its base name. Names without a dot, and names whose only dot
// is the first character (".bashrc"), have no extension.
func Extension(name string) string {
	base := filepath.Base(name)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 || idx == len(base)-1 {
		return ""
	}
	return folder.String(base[idx+1:])
}

// Build constructs a registry from categories in the given order.
func Build(categories []Category) (*Registry, error) {
	r := &Registry{
		order:  make([]Category, 0, len(categories)),
		owners: make(map[string]string),
	}
	names := make(map[string]string, len(categories))

	for i, cat := range categories {
		name := strings.TrimSpace(cat.Name)
		if err := validateName(name); err != nil {
			return nil, fmt.Errorf("category %d: %w", i, err)
		}
		key := folder.String(name)
		if prior, ok := names[key]; ok {
			return nil, fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateCategory, name, prior)
		}
		names[key] = name

		exts := make([]string, 0, len(cat.Extensions))
		for _, raw := range cat.Extensions {
			ext := NormalizeExtension(raw)
			if ext == "" || slices.Contains(exts, ext) {
				continue
			}
			exts = append(exts, ext)
			if owner, taken := r.owners[ext]; taken {
				r.shadowed = append(r.shadowed, Shadow{Extension: ext, Owner: owner, Shadowed: name})
				continue
			}
			r.owners[ext] = name
		}
		r.order = append(r.order, Category{Name: name, Extensions: exts})
	}
	return r, nil
}

func validateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidCategory)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidCategory, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidCategory, name)
	}
	return nil
}

// Lookup returns the category owning ext. The extension may carry a leading
// dot and any letter case.
func (r *Registry) Lookup(ext string) (string, bool) {
	if r == nil {
		return "", false
	}
	name, ok := r.owners[NormalizeExtension(ext)]
	return name, ok
}

// CategoryFor resolves the category for a filename.
func (r *Registry) CategoryFor(filename string) (string, bool) {
	ext := Extension(filename)
	if ext == "" {
		return "", false
	}
	return r.Lookup(ext)
}

// HasRecognizedSuffix reports whether filename's extension belongs to any category.
func (r *Registry) HasRecognizedSuffix(filename string) bool {
	_, ok := r.CategoryFor(filename)
	return ok
}

// Categories yields category names in registration order.
func (r *Registry) Categories() iter.Seq[string] {
	return func(yield func(string) bool) {
		if r == nil {
			return
		}
		for _, cat := range r.order {
			if !yield(cat.Name) {
				return
			}
		}
	}
}

// Extensions returns the configured extensions of category, including ones
// shadowed by an earlier category.
func (r *Registry) Extensions(category string) []string {
	if r == nil {
		return nil
	}
	for _, cat := range r.order {
		if cat.Name == category {
			return slices.Clone(cat.Extensions)
		}
	}
	return nil
}

// Len reports the number of categories.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Shadowed lists extensions claimed by more than one category.
func (r *Registry) Shadowed() []Shadow {
	if r == nil {
		return nil
	}
	return slices.Clone(r.shadowed)
}

// IsCategoryDir reports whether dir is one of base's category directories.
func (r *Registry) IsCategoryDir(base, dir string) bool {
	if r == nil {
		return false
	}
	base = filepath.Clean(base)
	dir = filepath.Clean(dir)
	if filepath.Dir(dir) != base {
		return false
	}
	leaf := filepath.Base(dir)
	for _, cat := range r.order {
		if cat.Name == leaf {
			return true
		}
	}
	return false
}

// InCategoryDir reports whether path already lives inside one of base's
// category directories, at any depth.
func (r *Registry) InCategoryDir(base, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	first, _, found := strings.Cut(rel, string(filepath.Separator))
	if !found {
		return false
	}
	return r.IsCategoryDir(base, filepath.Join(base, first))
}
