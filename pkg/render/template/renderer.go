package template

import (
	"context"

	"github.com/goliatone/go-twigrender/pkg/callable"
)

// Environment is the capability surface handed to configure hooks. It
// exposes registration and number formatting without leaking the engine.
// Registrations made here replace earlier ones with the same name.
type Environment interface {
	AddFilter(name string, fn callable.Callable) error
	AddFunction(name string, fn callable.Callable) error
	AddGlobal(name string, value any) error
	SetNumberFormat(format NumberFormat)
	NumberFormat() NumberFormat
}

// Engine renders named templates. Implementations must be safe for
// concurrent Render calls once configuration is complete.
type Engine interface {
	Environment
	Render(ctx context.Context, name string, data map[string]any) (string, error)
}

// NumberFormat drives the number_format filter, following the Twig
// defaults of zero decimals, "." and ",".
type NumberFormat struct {
	Decimals          int
	DecimalPoint      string
	ThousandSeparator string
}

// DefaultNumberFormat returns the Twig defaults.
func DefaultNumberFormat() NumberFormat {
	return NumberFormat{
		Decimals:          0,
		DecimalPoint:      ".",
		ThousandSeparator: ",",
	}
}
