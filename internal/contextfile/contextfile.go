// Package contextfile reads render contexts from JSON or YAML files and
// from key=value assignments given on the command line.
package contextfile

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"gopkg.in/yaml.v3"
)

// Load reads a context map from path. Files ending in .yaml or .yml are
// decoded as YAML, everything else as JSON. The top level must be a
// mapping whose keys are valid template names.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	ctx, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("context file %q: %w", path, err)
	}
	return ctx, nil
}

// Parse decodes data in the format named by ext (".json", ".yaml", ".yml").
func Parse(data []byte, ext string) (map[string]any, error) {
	ctx := make(map[string]any)
	var err error
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &ctx)
	default:
		err = json.Unmarshal(data, &ctx)
	}
	if err != nil {
		return nil, err
	}
	for name := range ctx {
		if !jinja.IsIdentifier(name) {
			return nil, fmt.Errorf("key %q is not a valid variable name", name)
		}
	}
	return ctx, nil
}

// LoadAll loads every file and merges them left to right.
func LoadAll(paths ...string) (map[string]any, error) {
	merged := make(map[string]any)
	for _, p := range paths {
		ctx, err := Load(p)
		if err != nil {
			return nil, err
		}
		maps.Copy(merged, ctx)
	}
	return merged, nil
}

// ParseSet splits a name=value assignment. The value is decoded as a YAML
// scalar or flow collection, so "3" is an int, "true" a bool and "[a, b]" a
// list; anything that does not decode is kept as a string.
func ParseSet(assignment string) (string, any, error) {
	name, raw, ok := strings.Cut(assignment, "=")
	if !ok {
		return "", nil, fmt.Errorf("expected name=value, got %q", assignment)
	}
	name = strings.TrimSpace(name)
	if !jinja.IsIdentifier(name) {
		return "", nil, fmt.Errorf("%q is not a valid variable name", name)
	}
	if raw == "" {
		return name, "", nil
	}
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return name, raw, nil
	}
	return name, v, nil
}

// Sets is a flag.Value collecting repeated -set name=value flags.
type Sets map[string]any

func (s Sets) String() string {
	parts := make([]string, 0, len(s))
	for k, v := range s {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (s Sets) Set(assignment string) error {
	name, v, err := ParseSet(assignment)
	if err != nil {
		return err
	}
	s[name] = v
	return nil
}
