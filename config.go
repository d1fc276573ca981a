package twigrender

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/goliatone/go-twigrender/pkg/callable"
	"github.com/goliatone/go-twigrender/pkg/markdown"
	"github.com/goliatone/go-twigrender/pkg/render/template"
	"github.com/goliatone/go-twigrender/pkg/render/template/pongo"
)

// ErrInvalidConfig is matched by every *ConfigError.
var ErrInvalidConfig = errors.New("twigrender: invalid configuration")

// ConfigError reports a configuration field that does not have the expected
// shape. No engine is constructed when validation fails.
type ConfigError struct {
	Field    string
	Expected string
	Reason   string
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("twigrender: expected %s at %q", e.Expected, e.Field)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// Config declares everything a Renderer needs. It is read once by Build and
// not retained afterwards, so later mutation has no effect on a built
// renderer.
type Config struct {
	// View selects the template for a render call. Nil uses DefaultView.
	View ViewSelector

	// Views holds in-memory templates, checked before any directory.
	Views map[string]string
	// ViewsDir lists filesystem roots in precedence order.
	ViewsDir []string
	// ViewsFS lists additional roots, consulted after ViewsDir.
	ViewsFS []fs.FS

	Functions map[string]callable.Callable
	Filters   map[string]callable.Callable
	Globals   map[string]any

	// Configure runs after every other registration and may override any of
	// them.
	Configure func(template.Environment) error

	// MarkdownDisabled removes the built-in markdown filter.
	MarkdownDisabled bool
	// MarkdownOptions replaces markdown.DefaultOptions as the filter base.
	MarkdownOptions    *markdown.Options
	MarkdownExtensions []markdown.Extension
	// MarkdownTrim strips surrounding whitespace from markdown output.
	MarkdownTrim bool

	Logger *slog.Logger
}

// Validate checks field shapes without constructing anything.
func (c Config) Validate() error {
	if err := validateSelector(c.View); err != nil {
		return err
	}

	for name := range c.Views {
		if strings.TrimSpace(name) == "" {
			return &ConfigError{Field: "views", Expected: "non-empty template names"}
		}
	}
	for i, dir := range c.ViewsDir {
		if strings.TrimSpace(dir) == "" {
			return &ConfigError{
				Field:    fmt.Sprintf("viewsDir[%d]", i),
				Expected: "non-empty directory",
			}
		}
	}
	for i, fsys := range c.ViewsFS {
		if fsys == nil {
			return &ConfigError{
				Field:    fmt.Sprintf("viewsFS[%d]", i),
				Expected: "fs.FS",
				Reason:   "nil filesystem",
			}
		}
	}

	if err := validateCallables("functions", c.Functions, false); err != nil {
		return err
	}
	if err := validateCallables("filters", c.Filters, true); err != nil {
		return err
	}
	for _, name := range sortedKeys(c.Globals) {
		if err := pongo.ValidateName(name); err != nil {
			return &ConfigError{
				Field:    "globals." + name,
				Expected: "identifier",
				Reason:   err.Error(),
			}
		}
	}

	for i, ext := range c.MarkdownExtensions {
		if ext == nil {
			return &ConfigError{
				Field:    fmt.Sprintf("markdownExtensions[%d]", i),
				Expected: "markdown.Extension",
				Reason:   "nil extension",
			}
		}
	}
	return nil
}

func validateSelector(view ViewSelector) error {
	switch v := view.(type) {
	case nil:
		return nil
	case StaticView:
		if strings.TrimSpace(string(v)) == "" {
			return &ConfigError{Field: "view", Expected: "template name or selector function", Reason: "empty view name"}
		}
	case ViewFunc:
		if v == nil {
			return &ConfigError{Field: "view", Expected: "template name or selector function", Reason: "nil selector function"}
		}
	}
	return nil
}

func validateCallables(field string, fns map[string]callable.Callable, filter bool) error {
	for _, name := range sortedKeys(fns) {
		if err := pongo.ValidateName(name); err != nil {
			return &ConfigError{
				Field:    field + "." + name,
				Expected: "identifier",
				Reason:   err.Error(),
			}
		}
		if !fns[name].Valid() {
			return &ConfigError{
				Field:    field + "." + name,
				Expected: "callable.Sync or callable.Async value",
			}
		}
		if filter && pongo.BuiltinFilterReserved(name) {
			return &ConfigError{
				Field:    field + "." + name,
				Expected: "filter name not provided by the engine",
				Reason:   "collides with a built-in filter",
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
