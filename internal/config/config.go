// Package config loads the instrumentation configuration document.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrInvalid wraps every configuration validation failure so callers can
// distinguish bad input from I/O trouble.
var ErrInvalid = errors.New("invalid configuration")

// fileConfig is the raw TOML shape of the configuration document.
type fileConfig struct {
	Assemblies    []string          `toml:"assemblies"`
	TypeInclude   string            `toml:"type_include"`
	TypeExclude   string            `toml:"type_exclude"`
	MethodInclude string            `toml:"method_include"`
	MethodExclude string            `toml:"method_exclude"`
	Exclusions    []methodExclusion `toml:"method_exclusion"`
}

type methodExclusion struct {
	Method  string   `toml:"method"`
	Offsets []int32  `toml:"offsets"`
	Lines   []string `toml:"lines"`
}

// Exclusion is the per-method body exclusion table: instruction offsets
// and whitespace-trimmed source line texts that must not receive probes.
type Exclusion struct {
	Offsets map[int32]struct{}
	Lines   map[string]struct{}
}

// Config is the validated, immutable configuration for one
// instrumentation pass. Nil pattern fields mean "no constraint": a nil
// include matches everything and a nil exclude matches nothing.
type Config struct {
	Assemblies    []string
	TypeInclude   *regexp.Regexp
	TypeExclude   *regexp.Regexp
	MethodInclude *regexp.Regexp
	MethodExclude *regexp.Regexp
	Exclusions    map[string]Exclusion
}

// Load reads and validates the configuration document at path.
func Load(path string) (*Config, error) {
	var raw fileConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("read configuration %q: %w", path, err)
	}
	cfg, err := resolve(&raw)
	if err != nil {
		return nil, fmt.Errorf("configuration %q: %w: %v", path, ErrInvalid, err)
	}
	return cfg, nil
}

func resolve(raw *fileConfig) (*Config, error) {
	if len(raw.Assemblies) == 0 {
		return nil, errors.New("no assemblies listed")
	}
	for i, path := range raw.Assemblies {
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("assembly path %d is empty", i)
		}
	}

	cfg := &Config{
		Assemblies: raw.Assemblies,
		Exclusions: make(map[string]Exclusion, len(raw.Exclusions)),
	}

	patterns := []struct {
		name string
		src  string
		dst  **regexp.Regexp
	}{
		{"type_include", raw.TypeInclude, &cfg.TypeInclude},
		{"type_exclude", raw.TypeExclude, &cfg.TypeExclude},
		{"method_include", raw.MethodInclude, &cfg.MethodInclude},
		{"method_exclude", raw.MethodExclude, &cfg.MethodExclude},
	}
	for _, p := range patterns {
		if p.src == "" {
			continue
		}
		re, err := regexp.Compile(p.src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		*p.dst = re
	}

	for _, excl := range raw.Exclusions {
		if excl.Method == "" {
			return nil, errors.New("method_exclusion without a method name")
		}
		entry := Exclusion{
			Offsets: make(map[int32]struct{}, len(excl.Offsets)),
			Lines:   make(map[string]struct{}, len(excl.Lines)),
		}
		for _, off := range excl.Offsets {
			entry.Offsets[off] = struct{}{}
		}
		for _, line := range excl.Lines {
			entry.Lines[strings.TrimSpace(line)] = struct{}{}
		}
		cfg.Exclusions[excl.Method] = entry
	}
	return cfg, nil
}

// ExclusionFor returns the body exclusion table for a method, if any.
func (c *Config) ExclusionFor(method string) (Exclusion, bool) {
	e, ok := c.Exclusions[method]
	return e, ok
}
