package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-twigrender"
)

// loadConfig reads the --config file, if any, and layers overrides on top.
func loadConfig(path string, overrides twigrender.FileConfig) (twigrender.FileConfig, error) {
	var base twigrender.FileConfig
	if strings.TrimSpace(path) != "" {
		loaded, err := twigrender.LoadFileConfig(path)
		if err != nil {
			return twigrender.FileConfig{}, err
		}
		base = loaded
	}
	return base.Merge(overrides)
}

// readData decodes a YAML or JSON document into render data. "-" reads
// from stdin.
func readData(path string, stdin io.Reader) (map[string]any, error) {
	if strings.TrimSpace(path) == "" {
		return map[string]any{}, nil
	}

	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read data: %w", err)
	}

	data := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return data, nil
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse data %s: %w", path, err)
	}
	return data, nil
}

// parseAssignments turns key=value pairs into a map. Values are read as
// YAML scalars, so numbers and booleans keep their type.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}
