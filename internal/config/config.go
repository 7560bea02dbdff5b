// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package config loads the hazsim server and CLI configuration.
//
// Values are taken, in increasing order of priority, from Default(), an
// optional YAML file and the HAZSIM_ADDR and HAZSIM_DB environment variables.
// Command line flags are applied on top by the caller.
//
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/db47h/hazsim/detect"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables overriding the configuration file.
//
const (
	EnvAddr = "HAZSIM_ADDR"
	EnvDB   = "HAZSIM_DB"
)

// Config is the complete configuration.
//
type Config struct {
	Server Server `yaml:"server"`
	Store  Store  `yaml:"store"`
	Detect Detect `yaml:"detect"`
	Log    Log    `yaml:"log"`
}

// Server configures the HTTP API.
//
type Server struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Store configures the circuit database.
//
type Store struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	SyncWrites bool   `yaml:"sync_writes"`
}

// Detect holds the detector tuning knobs. RaceThreshold must be positive;
// zero MaxDepth, MaxInputs or Workers select the detector defaults.
//
type Detect struct {
	RaceThreshold float64 `yaml:"race_threshold"`
	MaxDepth      int     `yaml:"max_depth"`
	MaxInputs     int     `yaml:"max_inputs"`
	Workers       int     `yaml:"workers"`
}

// Log configures logging. Level is one of debug, info, warn or error, Format
// one of json or text.
//
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration.
//
func Default() Config {
	return Config{
		Server: Server{
			Addr:        ":5000",
			CORSOrigins: []string{"*"},
		},
		Store: Store{
			Path: "hazsim.db",
		},
		Detect: Detect{
			RaceThreshold: detect.DefaultRaceThreshold,
			MaxDepth:      detect.DefaultMaxDepth,
			MaxInputs:     detect.DefaultMaxInputs,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load returns the configuration read from the YAML file at path, with
// environment overrides applied. An empty path, or a path to a file that
// does not exist, yields the defaults.
//
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return cfg, errors.Wrap(err, "read config")
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, errors.Wrap(err, "parse config "+path)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid config")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Store.Path = v
		c.Store.InMemory = false
	}
}

// Validate checks that all values are in range.
//
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return errors.New("store.path is required unless store.in_memory is set")
	}
	d := &c.Detect
	if d.RaceThreshold <= 0 {
		return errors.Errorf("detect.race_threshold must be > 0, got %g", d.RaceThreshold)
	}
	if d.MaxDepth < 0 {
		return errors.Errorf("detect.max_depth must be >= 0, got %d", d.MaxDepth)
	}
	if d.MaxInputs < 0 || d.MaxInputs > detect.MaxInputsLimit {
		return errors.Errorf("detect.max_inputs must be in [0, %d], got %d", detect.MaxInputsLimit, d.MaxInputs)
	}
	if d.Workers < 0 {
		return errors.Errorf("detect.workers must be >= 0, got %d", d.Workers)
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "text":
	default:
		return errors.Errorf("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

func (l Log) level() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, errors.Errorf("log.level: unknown level %q", l.Level)
	}
	return lvl, nil
}

// DetectOptions returns the detector options for this configuration.
//
func (c *Config) DetectOptions(log *slog.Logger) *detect.Options {
	return &detect.Options{
		Logger:        log,
		RaceThreshold: c.Detect.RaceThreshold,
		MaxDepth:      c.Detect.MaxDepth,
		MaxInputs:     c.Detect.MaxInputs,
		Workers:       c.Detect.Workers,
	}
}

// Logger returns a logger writing to w as configured.
//
func (l Log) Logger(w io.Writer) *slog.Logger {
	lvl, _ := l.level()
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(l.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
