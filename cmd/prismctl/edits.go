package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

// editsFile maps field names to metric values, e.g.
//
//	[email]
//	completeness = 0.5
//	importance = 0.2
type editsFile map[string]map[string]interface{}

// loadEdits reads a TOML or YAML edits file, chosen by extension.
func loadEdits(path string) ([]scoring.Edit, error) {
	var f editsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("failed to decode edits: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read edits: %w", err)
		}
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to decode edits: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported edits file %q: use .toml or .yaml", path)
	}
	return f.edits(), nil
}

func (f editsFile) edits() []scoring.Edit {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var out []scoring.Edit
	for _, field := range fields {
		metrics := make([]string, 0, len(f[field]))
		for m := range f[field] {
			metrics = append(metrics, m)
		}
		sort.Strings(metrics)
		for _, m := range metrics {
			out = append(out, scoring.Edit{Field: field, Metric: scoring.Metric(m), Value: f[field][m]})
		}
	}
	return out
}

// parseSet parses field.metric=value. The metric is taken after the last dot
// so field names may contain dots.
func parseSet(s string) (scoring.Edit, error) {
	key, value, ok := strings.Cut(s, "=")
	if !ok {
		return scoring.Edit{}, fmt.Errorf("invalid --set %q: want field.metric=value", s)
	}
	key = strings.TrimSpace(key)
	i := strings.LastIndex(key, ".")
	if i <= 0 || i == len(key)-1 {
		return scoring.Edit{}, fmt.Errorf("invalid --set %q: want field.metric=value", s)
	}
	return scoring.Edit{
		Field:  key[:i],
		Metric: scoring.Metric(key[i+1:]),
		Value:  strings.TrimSpace(value),
	}, nil
}
