// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/db47h/hazsim/detect"
	"github.com/db47h/hazsim/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "hazsim.yaml")
	require.NoError(t, os.WriteFile(p, []byte(data), 0600))
	return p
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, detect.DefaultRaceThreshold, cfg.Detect.RaceThreshold)
	assert.Equal(t, detect.DefaultMaxDepth, cfg.Detect.MaxDepth)
	assert.Equal(t, detect.DefaultMaxInputs, cfg.Detect.MaxInputs)
}

func TestLoad(t *testing.T) {
	t.Setenv(config.EnvAddr, "")
	t.Setenv(config.EnvDB, "")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	cfg, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	p := writeFile(t, `
server:
  addr: "127.0.0.1:8080"
  cors_origins: ["http://localhost:3000"]
store:
  in_memory: true
detect:
  race_threshold: 0.25
  workers: 2
log:
  level: debug
  format: text
`)
	cfg, err = config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Store.InMemory)
	assert.Equal(t, 0.25, cfg.Detect.RaceThreshold)
	assert.Equal(t, detect.DefaultMaxDepth, cfg.Detect.MaxDepth, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Detect.Workers)

	o := cfg.DetectOptions(nil)
	assert.Equal(t, 0.25, o.RaceThreshold)
	assert.Equal(t, 2, o.Workers)
}

func TestLoad_env(t *testing.T) {
	t.Setenv(config.EnvAddr, ":9999")
	t.Setenv(config.EnvDB, "/tmp/hz")
	cfg, err := config.Load(writeFile(t, "store:\n  in_memory: true\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "/tmp/hz", cfg.Store.Path)
	assert.False(t, cfg.Store.InMemory)
}

func TestLoad_errors(t *testing.T) {
	t.Setenv(config.EnvAddr, "")
	t.Setenv(config.EnvDB, "")
	data := []struct {
		name string
		yaml string
		err  string
	}{
		{"syntax", "server: [", "parse config"},
		{"threshold", "detect:\n  race_threshold: -1\n", "invalid config: detect.race_threshold must be > 0, got -1"},
		{"zero threshold", "detect:\n  race_threshold: 0\n", "invalid config: detect.race_threshold must be > 0, got 0"},
		{"max inputs", "detect:\n  max_inputs: 100\n", "invalid config: detect.max_inputs must be in [0, 24], got 100"},
		{"workers", "detect:\n  workers: -2\n", "invalid config: detect.workers must be >= 0, got -2"},
		{"addr", "server:\n  addr: \"\"\n", "invalid config: server.addr is required"},
		{"path", "store:\n  path: \"\"\n", "invalid config: store.path is required unless store.in_memory is set"},
		{"level", "log:\n  level: loud\n", `invalid config: log.level: unknown level "loud"`},
		{"format", "log:\n  format: xml\n", `invalid config: log.format: unknown format "xml"`},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			_, err := config.Load(writeFile(t, d.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), d.err)
		})
	}
}

func TestLog_Logger(t *testing.T) {
	var buf bytes.Buffer
	log := config.Log{Level: "warn", Format: "text"}.Logger(&buf)
	log.Info("hidden")
	log.Warn("shown", "gate", "g1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "gate=g1")

	buf.Reset()
	config.Log{}.Logger(&buf).Info("json", "node", "a")
	assert.Contains(t, buf.String(), `"node":"a"`)
}
