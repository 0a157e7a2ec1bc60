// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for corral.
//
// Configuration is optional: corral runs with built-in defaults when no
// file exists. A file is loaded only when named explicitly, by the
// CORRAL_CONFIG environment variable or the --config flag, and naming a
// missing file is an error rather than a silent fallback. There is no
// automatic discovery — a launch's behavior should be explainable from
// its defaults plus at most one named file.
//
// String values in the file undergo ${VAR} / ${VAR:-default}
// environment expansion, so paths like ${HOME}/images stay portable.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when no --config flag is given.
const EnvConfigPath = "CORRAL_CONFIG"

// Config is corral's launch configuration.
type Config struct {
	// Image is the container image to launch. The image must carry the
	// firewall activator and the unprivileged user; corral never builds
	// or pulls images itself.
	Image string `yaml:"image"`

	// Docker is the container CLI binary to invoke, a name resolved on
	// PATH or an absolute path.
	Docker string `yaml:"docker"`

	// User is the unprivileged in-container user that runs the
	// command. Must not be root.
	User string `yaml:"user"`

	// Memory and CPUs are optional resource limits passed through to
	// the runtime ("2g", "1.5").
	Memory string `yaml:"memory"`
	CPUs   string `yaml:"cpus"`

	// EnvPassthrough lists extra environment variable names forwarded
	// into the container. Values come from corral's own environment at
	// create time and never appear in argument vectors.
	EnvPassthrough []string `yaml:"env_passthrough"`

	// Mounts are extra binds beyond the working directory,
	// "host:container[:ro]".
	Mounts []string `yaml:"mounts"`

	// StartTimeout and StopTimeout bound container creation and
	// teardown, as time.ParseDuration strings.
	StartTimeout string `yaml:"start_timeout"`
	StopTimeout  string `yaml:"stop_timeout"`
}

// Default returns the built-in configuration. Unlike most fields, the
// defaults here are the normal operating mode, not placeholder zero
// values: a stock install never writes a config file.
func Default() *Config {
	return &Config{
		Image:        "corral",
		Docker:       "docker",
		User:         "agent",
		StartTimeout: "60s",
		StopTimeout:  "30s",
	}
}

// Load returns the configuration from the file named by CORRAL_CONFIG,
// or the defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads a specific configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty file is a valid config: all defaults.
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables applies ${VAR} / ${VAR:-default} expansion to every
// string field that can hold a path or image reference.
func (c *Config) expandVariables() {
	c.Image = expandVars(c.Image)
	c.Docker = expandVars(c.Docker)
	for i, mount := range c.Mounts {
		c.Mounts[i] = expandVars(mount)
	}
}

// expandVars expands ${VAR} and ${VAR:-default} references from the
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Validate checks the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Image == "" {
		errs = append(errs, fmt.Errorf("image is required"))
	}
	if c.Docker == "" {
		errs = append(errs, fmt.Errorf("docker is required"))
	}
	if c.User == "" {
		errs = append(errs, fmt.Errorf("user is required"))
	}
	if c.User == "root" {
		errs = append(errs, fmt.Errorf("user must not be root: the command runs unprivileged"))
	}
	for _, mount := range c.Mounts {
		parts := strings.Split(mount, ":")
		if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
			errs = append(errs, fmt.Errorf("invalid mount %q: want host:container[:ro]", mount))
		}
	}
	if _, err := time.ParseDuration(c.StartTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid start_timeout %q: %v", c.StartTimeout, err))
	}
	if _, err := time.ParseDuration(c.StopTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid stop_timeout %q: %v", c.StopTimeout, err))
	}

	return errors.Join(errs...)
}

// StartTimeoutDuration returns the parsed start timeout. Validate
// guarantees the parse succeeds for loaded configs.
func (c *Config) StartTimeoutDuration() time.Duration {
	duration, err := time.ParseDuration(c.StartTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return duration
}

// StopTimeoutDuration returns the parsed stop timeout.
func (c *Config) StopTimeoutDuration() time.Duration {
	duration, err := time.ParseDuration(c.StopTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return duration
}
