package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "127.0.0.1:9321", cfg.CmdAddr())
}

func TestLoadOverridesOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.yaml")
	body := `
local_ip: 10.0.0.5
local_port: 9100
liveness_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.LocalIP)
	assert.Equal(t, 9100, cfg.LocalPort)
	assert.Equal(t, 30*time.Second, cfg.LivenessTimeout)

	// Untouched fields keep their defaults.
	assert.Equal(t, 100, cfg.CmdPortShift)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "10.0.0.5:9200", cfg.CmdAddr())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.yaml")
	require.NoError(t, os.WriteFile(path, []byte("local_ip: [oops"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"no ip", func(c *Config) { c.LocalIP = "" }, false},
		{"port zero", func(c *Config) { c.LocalPort = 0 }, false},
		{"port too large", func(c *Config) { c.LocalPort = 70000 }, false},
		{"negative shift", func(c *Config) { c.CmdPortShift = -1 }, false},
		{"zero liveness timeout", func(c *Config) { c.LivenessTimeout = 0 }, false},
		{"zero tick", func(c *Config) { c.TickInterval = 0 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
