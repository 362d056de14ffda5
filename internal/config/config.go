// Copyright (c) 2024 John Millikin <john@john-millikin.com>
//
// Permission to use, copy, modify, and/or distribute this software for any
// purpose with or without fee is hereby granted.
//
// THE SOFTWARE IS PROVIDED "AS IS" AND THE AUTHOR DISCLAIMS ALL WARRANTIES WITH
// REGARD TO THIS SOFTWARE INCLUDING ALL IMPLIED WARRANTIES OF MERCHANTABILITY
// AND FITNESS. IN NO EVENT SHALL THE AUTHOR BE LIABLE FOR ANY SPECIAL, DIRECT,
// INDIRECT, OR CONSEQUENTIAL DAMAGES OR ANY DAMAGES WHATSOEVER RESULTING FROM
// LOSS OF USE, DATA OR PROFITS, WHETHER IN AN ACTION OF CONTRACT, NEGLIGENCE OR
// OTHER TORTIOUS ACTION, ARISING OUT OF OR IN CONNECTION WITH THE USE OR
// PERFORMANCE OF THIS SOFTWARE.
//
// SPDX-License-Identifier: 0BSD

// Package config loads `schemata.yaml`, the build configuration used by
// `schemata build`.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/penumbra-zone/schemata/internal/logging"
)

const (
	DefaultFile     = "schemata.yaml"
	DefaultLanguage = "go"
)

type Config struct {
	LogLevel   string   `yaml:"log_level"`
	Jobs       int      `yaml:"jobs"`
	PluginPath string   `yaml:"plugin_path"`
	Targets    []Target `yaml:"targets"`

	// Path is the file the config was loaded from.
	Path string `yaml:"-"`
}

// Target is one schema and where its generated code goes. Relative paths
// are resolved against the directory of the config file.
type Target struct {
	Schema    string `yaml:"schema"`
	Output    string `yaml:"output"`
	Language  string `yaml:"language"`
	GoPackage string `yaml:"go_package"`
	Baseline  string `yaml:"baseline"`

	// Lock, if set, receives the compiled key model after a successful
	// build.
	Lock string `yaml:"lock"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	cfg.resolvePaths(filepath.Dir(path))
	if errs := checkOutputs(cfg.Targets); len(errs) > 0 {
		return nil, fmt.Errorf("%s: validate config: %w", path, errors.Join(errs...))
	}
	return cfg, nil
}

// Parse decodes and validates a config. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	setDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = logging.DefaultLevel
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = runtime.GOMAXPROCS(0)
	}
	for ii := range cfg.Targets {
		if cfg.Targets[ii].Language == "" {
			cfg.Targets[ii].Language = DefaultLanguage
		}
	}
}

func validate(cfg *Config) error {
	var errs []error
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if cfg.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs: must not be negative, got %d", cfg.Jobs))
	}
	if len(cfg.Targets) == 0 {
		errs = append(errs, errors.New("targets: at least one target is required"))
	}

	for ii, target := range cfg.Targets {
		if target.Schema == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: schema is required", ii))
		}
		if target.Output == "" {
			errs = append(errs, fmt.Errorf("targets[%d]: output is required", ii))
		}
	}
	errs = append(errs, checkOutputs(cfg.Targets)...)
	return errors.Join(errs...)
}

// checkOutputs rejects targets whose output directories are the same or
// nested, since targets are generated concurrently.
func checkOutputs(targets []Target) []error {
	var errs []error
	for ii := range targets {
		if targets[ii].Output == "" {
			continue
		}
		for jj := range targets[:ii] {
			if targets[jj].Output == "" {
				continue
			}
			if conflict := outputConflict(targets[jj].Output, targets[ii].Output); conflict != "" {
				errs = append(errs, fmt.Errorf(
					"targets[%d]: output %q %s targets[%d]",
					ii, targets[ii].Output, conflict, jj,
				))
				break
			}
		}
	}
	return errs
}

func outputConflict(prev, next string) string {
	prev, next = filepath.Clean(prev), filepath.Clean(next)
	switch {
	case prev == next:
		return "is also used by"
	case within(next, prev):
		return "is inside the output of"
	case within(prev, next):
		return "contains the output of"
	}
	return ""
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (cfg *Config) resolvePaths(dir string) {
	resolve := func(path *string) {
		if *path != "" && !filepath.IsAbs(*path) {
			*path = filepath.Join(dir, *path)
		}
	}
	for ii := range cfg.Targets {
		target := &cfg.Targets[ii]
		resolve(&target.Schema)
		resolve(&target.Output)
		resolve(&target.Baseline)
		resolve(&target.Lock)
	}
}

// Schemas lists the schema files of every target, for watching.
func (cfg *Config) Schemas() []string {
	out := make([]string, 0, len(cfg.Targets))
	for _, target := range cfg.Targets {
		out = append(out, target.Schema)
	}
	return out
}
