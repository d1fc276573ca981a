package pongo

import (
	"errors"
	"fmt"
	"regexp"
)

// UnknownFilterError is raised when a template applies a filter that is not
// registered for the rendering engine. Its message matches the one pongo2
// reports for filters that were never registered in the process.
type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("Filter '%s' does not exist.", e.Name)
}

// DetachedFilterError is raised when the filter tag applies a filter that
// engines bind per render. Such filters only work through the | operator.
type DetachedFilterError struct {
	Name string
}

func (e *DetachedFilterError) Error() string {
	return fmt.Sprintf("Filter '%s' can only be applied with '|'.", e.Name)
}

// BuiltinFilterError is returned when a registration would shadow a filter
// that pongo2 provides.
type BuiltinFilterError struct {
	Name string
}

func (e *BuiltinFilterError) Error() string {
	return fmt.Sprintf("pongo: filter %q collides with a built-in filter", e.Name)
}

// ExecutionError wraps a failed render with the template name and, when the
// engine reports it, the position of the failing expression. Err is the
// original cause: user extension errors keep their identity.
type ExecutionError struct {
	Template string
	Line     int
	Column   int
	Err      error
}

func (e *ExecutionError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("pongo: render %q (line %d, column %d): %v", e.Template, e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("pongo: render %q: %v", e.Template, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

var (
	unknownFilterPattern = regexp.MustCompile(`Filter '([^']+)' does not exist`)
	bannedFilterPattern  = regexp.MustCompile(`Usage of filter '([^']+)' is not allowed`)
)

// UnknownFilterName extracts the filter name from an unknown filter failure.
func UnknownFilterName(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var unknown *UnknownFilterError
	if errors.As(err, &unknown) {
		return unknown.Name, true
	}
	if match := unknownFilterPattern.FindStringSubmatch(err.Error()); match != nil {
		return match[1], true
	}
	return "", false
}

// IsUnknownFilter reports whether err stems from an unregistered filter.
func IsUnknownFilter(err error) bool {
	_, ok := UnknownFilterName(err)
	return ok
}
