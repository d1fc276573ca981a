package loader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTemplateNotFound matches every *NotFoundError via errors.Is.
var ErrTemplateNotFound = errors.New("template not found")

// Fault records a source that failed for a reason other than a missing file.
type Fault struct {
	Source string
	Err    error
}

func (f Fault) String() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

// NotFoundError reports a name that no configured source could resolve.
type NotFoundError struct {
	Name   string
	Faults []Fault
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unable to find template %q", e.Name)
	if len(e.Faults) == 0 {
		return msg
	}
	parts := make([]string, 0, len(e.Faults))
	for _, fault := range e.Faults {
		parts = append(parts, fault.String())
	}
	noun := "faults"
	if len(parts) == 1 {
		noun = "fault"
	}
	return fmt.Sprintf("%s (%d source %s: %s)", msg, len(parts), noun, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrTemplateNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrTemplateNotFound
}

// Clean reports whether every source missed without faulting.
func (e *NotFoundError) Clean() bool {
	return len(e.Faults) == 0
}

// IsNotFound reports whether err is a template-not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}
