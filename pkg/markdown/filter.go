package markdown

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/goliatone/go-twigrender/pkg/callable"
)

// FilterName is the name the filter is registered under.
const FilterName = "markdown"

// FilterOption customises the filter.
type FilterOption func(*Filter)

// WithTrim strips surrounding whitespace from the generated HTML.
func WithTrim(trim bool) FilterOption {
	return func(f *Filter) {
		f.trim = trim
	}
}

// Filter implements markdown(text, options?) on top of a Converter.
type Filter struct {
	conv *Converter
	base Options
	trim bool
}

// NewFilter binds conv to base options.
func NewFilter(conv *Converter, base Options, opts ...FilterOption) *Filter {
	if conv == nil {
		conv = NewConverter()
	}
	f := &Filter{conv: conv, base: base}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// Callable adapts the filter for engine registration. Output is marked safe.
func (f *Filter) Callable() callable.Callable {
	return callable.Sync(func(_ context.Context, args ...any) (any, error) {
		var (
			input any
			param any
		)
		if len(args) > 0 {
			input = args[0]
		}
		if len(args) > 1 {
			param = args[1]
		}
		return f.Apply(input, param)
	}, callable.WithSafeOutput(), callable.WithVariadic(1))
}

// Apply converts input, merging callOptions over the base options when given.
func (f *Filter) Apply(input any, callOptions any) (string, error) {
	text := coerceText(input)

	opts, inline, err := f.Resolve(callOptions)
	if err != nil {
		return "", err
	}

	var out string
	if inline {
		out = f.conv.ParseInline(text, opts)
	} else {
		out = f.conv.Parse(text, opts)
	}
	if f.trim {
		out = strings.TrimSpace(out)
	}
	return out, nil
}

type callOptions struct {
	Inline  bool `mapstructure:"inline"`
	Options `mapstructure:",squash"`
}

// Resolve merges call-site options over the base options. The reserved
// "inline" key selects the conversion mode and is not part of the result.
func (f *Filter) Resolve(raw any) (Options, bool, error) {
	if raw == nil {
		return f.base, false, nil
	}

	values, err := normalizeCallOptions(raw)
	if err != nil {
		return Options{}, false, err
	}

	merged := callOptions{Options: f.base}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &merged,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Options{}, false, fmt.Errorf("markdown: options decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return Options{}, false, fmt.Errorf("markdown: invalid options: %w", err)
	}
	return merged.Options, merged.Inline, nil
}

// ParseOptionString reads the compact template form "inline,gfm=false".
// Bare keys are true.
func ParseOptionString(raw string) map[string]any {
	out := make(map[string]any)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !hasValue {
			out[key] = true
			continue
		}
		out[key] = strings.TrimSpace(value)
	}
	return out
}

func normalizeCallOptions(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case string:
		return ParseOptionString(v), nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = value
		}
		return out, nil
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, nil
	}
	return nil, fmt.Errorf("markdown: options must be a map or option string, got %T", raw)
}

func coerceText(input any) string {
	switch v := input.(type) {
	case nil:
		return ""
	case string:
		return v
	case callable.Markup:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
