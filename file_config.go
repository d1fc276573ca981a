package twigrender

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-twigrender/pkg/markdown"
	"github.com/goliatone/go-twigrender/pkg/render/template"
)

// FileConfig is the serialisable part of Config, as read from YAML or JSON.
type FileConfig struct {
	View          string            `mapstructure:"view" yaml:"view,omitempty"`
	Views         map[string]string `mapstructure:"views" yaml:"views,omitempty"`
	ViewsDir      []string          `mapstructure:"viewsDir" yaml:"viewsDir,omitempty"`
	Globals       map[string]any    `mapstructure:"globals" yaml:"globals,omitempty"`
	MarkedEnabled *bool             `mapstructure:"markedEnabled" yaml:"markedEnabled,omitempty"`
	MarkedOptions *markdown.Options `mapstructure:"markedOptions" yaml:"markedOptions,omitempty"`
	MarkdownTrim  bool              `mapstructure:"markdownTrim" yaml:"markdownTrim,omitempty"`
	NumberFormat  *NumberFormat     `mapstructure:"numberFormat" yaml:"numberFormat,omitempty"`
}

// NumberFormat overrides parts of the engine number format. Nil fields keep
// the engine value.
type NumberFormat struct {
	Decimals          *int    `mapstructure:"decimals" yaml:"decimals,omitempty"`
	DecimalPoint      *string `mapstructure:"decimalPoint" yaml:"decimalPoint,omitempty"`
	ThousandSeparator *string `mapstructure:"thousandSeparator" yaml:"thousandSeparator,omitempty"`
}

func (n NumberFormat) apply(format template.NumberFormat) template.NumberFormat {
	if n.Decimals != nil {
		format.Decimals = *n.Decimals
	}
	if n.DecimalPoint != nil {
		format.DecimalPoint = *n.DecimalPoint
	}
	if n.ThousandSeparator != nil {
		format.ThousandSeparator = *n.ThousandSeparator
	}
	return format
}

var fileConfigShapes = map[string]string{
	"view":          "string",
	"views":         "mapping of template name to text",
	"viewsDir":      "string or list of strings",
	"globals":       "mapping",
	"markedEnabled": "boolean",
	"markedOptions": "markdown options mapping",
	"markdownTrim":  "boolean",
	"numberFormat":  "mapping with decimals, decimalPoint and thousandSeparator",
}

// DecodeFileConfig decodes an untyped document. Unknown keys and values of
// the wrong shape fail with a *ConfigError naming the field.
func DecodeFileConfig(raw map[string]any) (FileConfig, error) {
	var out FileConfig
	if len(raw) == 0 {
		return out, nil
	}

	for _, key := range sortedKeys(raw) {
		expected, known := fileConfigShapes[key]
		if !known {
			return FileConfig{}, &ConfigError{Field: key, Expected: "known configuration key", Reason: "unknown key"}
		}
		var probe FileConfig
		if err := decodeInto(map[string]any{key: raw[key]}, &probe); err != nil {
			return FileConfig{}, &ConfigError{Field: key, Expected: expected, Reason: err.Error()}
		}
	}

	if err := decodeInto(raw, &out); err != nil {
		return FileConfig{}, &ConfigError{Field: "config", Expected: "configuration mapping", Reason: err.Error()}
	}
	return out, nil
}

func decodeInto(input map[string]any, out *FileConfig) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:  stringToListHook,
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// stringToListHook lifts a lone string into a one element list, so viewsDir
// may be written either way.
func stringToListHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return []string{reflect.ValueOf(data).String()}, nil
}

// LoadFileConfig reads a YAML (or JSON) configuration file. Relative
// viewsDir entries are resolved against the file's directory.
func LoadFileConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("twigrender: read config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return FileConfig{}, fmt.Errorf("twigrender: parse config %s: %w", path, err)
	}

	cfg, err := DecodeFileConfig(raw)
	if err != nil {
		return FileConfig{}, err
	}

	base := filepath.Dir(path)
	for i, dir := range cfg.ViewsDir {
		if strings.TrimSpace(dir) == "" || filepath.IsAbs(dir) {
			continue
		}
		cfg.ViewsDir[i] = filepath.Join(base, dir)
	}
	return cfg, nil
}

// Merge layers override on top of f. Set fields in override win, maps are
// merged key by key and lists are replaced.
func (f FileConfig) Merge(override FileConfig) (FileConfig, error) {
	out := f.clone()
	if err := mergo.Merge(&out, override.clone(), mergo.WithOverride); err != nil {
		return FileConfig{}, fmt.Errorf("twigrender: merge config: %w", err)
	}
	return out, nil
}

func (f FileConfig) clone() FileConfig {
	out := f
	if f.Views != nil {
		out.Views = make(map[string]string, len(f.Views))
		for k, v := range f.Views {
			out.Views[k] = v
		}
	}
	if f.Globals != nil {
		out.Globals = make(map[string]any, len(f.Globals))
		for k, v := range f.Globals {
			out.Globals[k] = v
		}
	}
	out.ViewsDir = append([]string(nil), f.ViewsDir...)
	return out
}

// Config converts the file form into a Config. Callables cannot be expressed
// in files and are left empty.
func (f FileConfig) Config() Config {
	cfg := Config{
		Views:           f.Views,
		ViewsDir:        f.ViewsDir,
		Globals:         f.Globals,
		MarkdownOptions: f.MarkedOptions,
		MarkdownTrim:    f.MarkdownTrim,
	}
	if strings.TrimSpace(f.View) != "" {
		cfg.View = StaticView(f.View)
	}
	if f.MarkedEnabled != nil {
		cfg.MarkdownDisabled = !*f.MarkedEnabled
	}
	if f.NumberFormat != nil {
		format := *f.NumberFormat
		cfg.Configure = func(env template.Environment) error {
			env.SetNumberFormat(format.apply(env.NumberFormat()))
			return nil
		}
	}
	return cfg
}
