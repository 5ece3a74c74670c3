package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dotted keys understood by the scanner.
const (
	KeyScanParallel        = "scan.parallel"
	KeyScanWorkers         = "scan.workers"
	KeyScanLoadInputParams = "scan.load_input_params"
	KeyScanAcquisitionExt  = "scan.acquisition_ext"
	KeyScanPreviewExts     = "scan.preview_exts"
	KeyDBOverride          = "db.override_db"
)

// Settings is a read-only tree of values addressed by dotted keys
// ("scan.parallel"). YAML is a superset of JSON, so the legacy settings.json
// files parse unchanged.
type Settings struct {
	values map[string]any
}

// NewSettings wraps an already decoded tree.
func NewSettings(values map[string]any) *Settings {
	if values == nil {
		values = map[string]any{}
	}
	return &Settings{values: values}
}

// LoadSettings parses the file at path. A missing file yields empty settings
// so every lookup falls back to its default.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return NewSettings(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return NewSettings(values), nil
}

// Get returns the value at key, or defaultValue when any segment is missing.
func (s *Settings) Get(key string, defaultValue any) any {
	if s == nil {
		return defaultValue
	}
	var cur any = s.values
	for _, k := range strings.Split(key, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return defaultValue
		}
		cur, ok = m[k]
		if !ok {
			return defaultValue
		}
	}
	if cur == nil {
		return defaultValue
	}
	return cur
}

func (s *Settings) Bool(key string, defaultValue bool) bool {
	if v, ok := s.Get(key, defaultValue).(bool); ok {
		return v
	}
	return defaultValue
}

func (s *Settings) Int(key string, defaultValue int) int {
	switch v := s.Get(key, defaultValue).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

func (s *Settings) String(key string, defaultValue string) string {
	if v, ok := s.Get(key, defaultValue).(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func (s *Settings) Strings(key string, defaultValue []string) []string {
	raw, ok := s.Get(key, nil).([]any)
	if !ok {
		return defaultValue
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if str, ok := item.(string); ok {
			out = append(out, str)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// ScanWorkers is the crawl pool size, defaulting to the available CPUs.
func (s *Settings) ScanWorkers() int {
	n := s.Int(KeyScanWorkers, runtime.NumCPU())
	if n <= 0 {
		return runtime.NumCPU()
	}
	return n
}
