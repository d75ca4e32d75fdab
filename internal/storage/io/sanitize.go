package io

import (
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/taskscope/taskscope/internal/sanitize"
)

// SanitizeConfigYAMLRepository loads sanitizer rules from YAML files.
type SanitizeConfigYAMLRepository struct {
	fs fs.FS
}

// NewSanitizeConfigYAMLRepository creates a new YAML sanitizer rules repository.
func NewSanitizeConfigYAMLRepository(filesystem fs.FS) *SanitizeConfigYAMLRepository {
	return &SanitizeConfigYAMLRepository{fs: filesystem}
}

// GetOptions loads the sanitizer rules of the file at path.
func (r *SanitizeConfigYAMLRepository) GetOptions(ctx context.Context, path string) (sanitize.Options, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return sanitize.Options{}, fmt.Errorf("reading sanitize config file: %w", err)
	}

	if ctx.Err() != nil {
		return sanitize.Options{}, ctx.Err()
	}

	var cfg SanitizeConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return sanitize.Options{}, fmt.Errorf("parsing YAML: %w", err)
	}

	opts, err := cfg.toOptions()
	if err != nil {
		return sanitize.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return opts, nil
}

// SanitizeConfig represents the YAML structure of the sanitizer rules.
//
// Patterns are case-insensitive. Unless replace_defaults is set, the rules extend the
// default ones.
type SanitizeConfig struct {
	ReplaceDefaults   bool     `yaml:"replace_defaults"`
	KeyPatterns       []string `yaml:"key_patterns"`
	ValuePatterns     []string `yaml:"value_patterns"`
	SkipValueMaskKeys []string `yaml:"skip_value_mask_keys"`
	MaxDepth          int      `yaml:"max_depth"`
}

func (c SanitizeConfig) toOptions() (sanitize.Options, error) {
	if c.MaxDepth < 0 {
		return sanitize.Options{}, fmt.Errorf("max_depth must be positive, got: %d", c.MaxDepth)
	}

	keys, err := compilePatterns(c.KeyPatterns)
	if err != nil {
		return sanitize.Options{}, fmt.Errorf("key_patterns: %w", err)
	}
	values, err := compilePatterns(c.ValuePatterns)
	if err != nil {
		return sanitize.Options{}, fmt.Errorf("value_patterns: %w", err)
	}
	skip := c.SkipValueMaskKeys

	if !c.ReplaceDefaults {
		keys = append(slices.Clone(sanitize.DefaultKeyPatterns), keys...)
		values = append(slices.Clone(sanitize.DefaultValuePatterns), values...)
		skip = append(slices.Clone(sanitize.DefaultSkipValueMaskKeys), skip...)
	}

	// Empty but non nil so the sanitizer does not fall back to the defaults.
	if keys == nil {
		keys = []*regexp.Regexp{}
	}
	if values == nil {
		values = []*regexp.Regexp{}
	}
	if skip == nil {
		skip = []string{}
	}

	return sanitize.Options{
		KeyPatterns:       keys,
		ValuePatterns:     values,
		SkipValueMaskKeys: skip,
		MaxDepth:          c.MaxDepth,
	}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}
