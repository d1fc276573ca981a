package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
)

// Template is the resolved content of a name.
type Template struct {
	Name    string
	Content string
	// Source is the Name() of the source that produced the content.
	Source string
}

// Source resolves names to content. Lookup returns ok=false with a nil error
// for a clean miss; a non-nil error is a fault.
type Source interface {
	Name() string
	Lookup(ctx context.Context, name string) (tpl Template, ok bool, err error)
}

// Lister is implemented by sources that can enumerate their names.
type Lister interface {
	List(ctx context.Context, pattern string) ([]string, error)
}

// MapSource serves templates from an in-memory mapping.
type MapSource struct {
	label     string
	templates map[string]string
}

// NewMapSource copies templates into a new in-memory source.
func NewMapSource(label string, templates map[string]string) *MapSource {
	if strings.TrimSpace(label) == "" {
		label = "views"
	}
	copied := make(map[string]string, len(templates))
	for name, content := range templates {
		copied[name] = content
	}
	return &MapSource{label: label, templates: copied}
}

// Name implements Source.
func (m *MapSource) Name() string {
	return m.label
}

// Len returns the number of registered templates.
func (m *MapSource) Len() int {
	return len(m.templates)
}

// Lookup implements Source.
func (m *MapSource) Lookup(_ context.Context, name string) (Template, bool, error) {
	content, ok := m.templates[name]
	if !ok {
		return Template{}, false, nil
	}
	return Template{Name: name, Content: content, Source: m.label}, true, nil
}

// List implements Lister.
func (m *MapSource) List(_ context.Context, pattern string) ([]string, error) {
	var names []string
	for name := range m.templates {
		matched, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("loader: match %q: %w", pattern, err)
		}
		if matched {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// DirSource serves templates from a filesystem root. Only regular files
// match; directories and other file types are a miss.
type DirSource struct {
	label string
	fsys  fs.FS
}

// NewDirSource roots a source at dir on the local filesystem.
func NewDirSource(dir string) *DirSource {
	return &DirSource{label: dir, fsys: os.DirFS(dir)}
}

// NewFSSource wraps an arbitrary fs.FS, such as an embed.FS.
func NewFSSource(label string, fsys fs.FS) *DirSource {
	if strings.TrimSpace(label) == "" {
		label = "fs"
	}
	return &DirSource{label: label, fsys: fsys}
}

// Name implements Source.
func (d *DirSource) Name() string {
	return d.label
}

// Lookup implements Source.
func (d *DirSource) Lookup(ctx context.Context, name string) (Template, bool, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, false, err
	}
	if d.fsys == nil {
		return Template{}, false, errors.New("loader: filesystem is not configured")
	}

	rel, ok := relativeName(name)
	if !ok {
		return Template{}, false, nil
	}

	info, err := fs.Stat(d.fsys, rel)
	if err != nil {
		if isMissing(err) {
			return Template{}, false, nil
		}
		return Template{}, false, err
	}
	if !info.Mode().IsRegular() {
		return Template{}, false, nil
	}

	data, err := fs.ReadFile(d.fsys, rel)
	if err != nil {
		if isMissing(err) {
			return Template{}, false, nil
		}
		return Template{}, false, err
	}
	return Template{Name: name, Content: string(data), Source: d.label}, true, nil
}

// List implements Lister.
func (d *DirSource) List(_ context.Context, pattern string) ([]string, error) {
	if d.fsys == nil {
		return nil, errors.New("loader: filesystem is not configured")
	}
	names, err := doublestar.Glob(d.fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("loader: glob %q in %s: %w", pattern, d.label, err)
	}
	sort.Strings(names)
	return names, nil
}

// relativeName maps a template name onto an fs.FS path. Like MapSource it
// takes the name as given; surrounding whitespace is part of the name.
func relativeName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	cleaned := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if !fs.ValidPath(cleaned) || cleaned == "." {
		return "", false
	}
	return cleaned, true
}

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}
