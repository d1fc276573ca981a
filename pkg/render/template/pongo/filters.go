package pongo

import (
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-twigrender/pkg/render/template"
)

// NumberFormatFilter is bound per engine so configure hooks can change the
// separators without touching other engines.
const NumberFormatFilter = "number_format"

// trim and lowerfirst are shared by every engine. They are registered before
// any render can read the filter map.
func init() {
	if !pongo2.FilterExists("trim") {
		_ = pongo2.RegisterFilter("trim", filterTrim)
	}
	if !pongo2.FilterExists("lowerfirst") {
		_ = pongo2.RegisterFilter("lowerfirst", filterLowerFirst)
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterLowerFirst lowercases the first non blank rune.
func filterLowerFirst(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	text := in.String()
	i := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) })
	if i < 0 {
		return pongo2.AsValue(text), nil
	}
	r, size := utf8.DecodeRuneInString(text[i:])
	return pongo2.AsValue(text[:i] + string(unicode.ToLower(r)) + text[i+size:]), nil
}

// numberFormatFilter formats the input with format. An integer parameter
// overrides the number of decimals for that call.
func numberFormatFilter(format template.NumberFormat) pongo2.FilterFunction {
	return func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		f := format
		if param != nil && !param.IsNil() {
			if param.IsInteger() {
				f.Decimals = param.Integer()
			} else if decimals, err := strconv.Atoi(strings.TrimSpace(param.String())); err == nil {
				f.Decimals = decimals
			}
		}
		var n float64
		if !in.IsNil() {
			n = in.Float()
		}
		return pongo2.AsValue(FormatNumber(n, f)), nil
	}
}

// humanize supports at most nine decimals.
const maxHumanizeDecimals = 9

// FormatNumber renders n with Twig number_format semantics.
func FormatNumber(n float64, f template.NumberFormat) string {
	if f.Decimals < 0 {
		f.Decimals = 0
	}
	if out, ok := humanizeNumber(n, f); ok {
		return out
	}
	return manualNumber(n, f)
}

func humanizeNumber(n float64, f template.NumberFormat) (out string, ok bool) {
	if f.Decimals > maxHumanizeDecimals || math.IsNaN(n) || math.IsInf(n, 0) {
		return "", false
	}
	if !formatDirective(f.ThousandSeparator) {
		return "", false
	}
	point := f.DecimalPoint
	if f.Decimals == 0 && point == "" {
		point = "."
	}
	if !formatDirective(point) || point == f.ThousandSeparator {
		return "", false
	}

	defer func() {
		if recover() != nil {
			out, ok = "", false
		}
	}()
	pattern := "#" + f.ThousandSeparator + "###" + point + strings.Repeat("#", f.Decimals)
	return humanize.FormatFloat(pattern, n), true
}

func formatDirective(s string) bool {
	if utf8.RuneCountInString(s) != 1 {
		return false
	}
	switch s {
	case "#", "0", "+":
		return false
	}
	return true
}

// manualNumber covers separators humanize cannot express, such as empty or
// multi-character ones.
func manualNumber(n float64, f template.NumberFormat) string {
	raw := strconv.FormatFloat(math.Abs(n), 'f', f.Decimals, 64)
	intPart, fracPart, _ := strings.Cut(raw, ".")

	var b strings.Builder
	if n < 0 && strings.Trim(raw, "0.") != "" {
		b.WriteByte('-')
	}
	for i, digit := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(f.ThousandSeparator)
		}
		b.WriteRune(digit)
	}
	if fracPart != "" {
		b.WriteString(f.DecimalPoint)
		b.WriteString(fracPart)
	}
	return b.String()
}
