// Package config loads the meta-server configuration from an optional YAML
// file, with zero values filled from defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zenjugit/zeppelin/pkg/addr"
)

// Config is the full server configuration.
type Config struct {
	// LocalIP and LocalPort identify this process; the replicated log
	// reports leaders by this base port.
	LocalIP   string `yaml:"local_ip"`
	LocalPort int    `yaml:"local_port"`

	// CmdPortShift is added to a base port to reach a server's command
	// port. It must agree across the whole cluster.
	CmdPortShift int `yaml:"cmd_port_shift"`

	MetricsAddr string `yaml:"metrics_addr"`
	DataDir     string `yaml:"data_dir"`

	LivenessTimeout time.Duration `yaml:"liveness_timeout"`
	TickInterval    time.Duration `yaml:"tick_interval"`
	RetryInterval   time.Duration `yaml:"retry_interval"`

	DialTimeout time.Duration `yaml:"dial_timeout"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	RecvTimeout time.Duration `yaml:"recv_timeout"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		LocalIP:         "127.0.0.1",
		LocalPort:       9221,
		CmdPortShift:    100,
		MetricsAddr:     ":9321",
		DataDir:         "./data",
		LivenessTimeout: 12 * time.Second,
		TickInterval:    time.Second,
		RetryInterval:   time.Second,
		DialTimeout:     time.Second,
		SendTimeout:     time.Second,
		RecvTimeout:     time.Second,
	}
}

// Load reads path into a Config on top of the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.LocalIP == "" {
		return fmt.Errorf("config: local_ip is required")
	}
	if c.LocalPort <= 0 || c.LocalPort > 65535 {
		return fmt.Errorf("config: bad local_port %d", c.LocalPort)
	}
	if c.CmdPortShift <= 0 {
		return fmt.Errorf("config: cmd_port_shift must be positive")
	}
	if c.LivenessTimeout <= 0 || c.TickInterval <= 0 {
		return fmt.Errorf("config: liveness_timeout and tick_interval must be positive")
	}
	return nil
}

// CmdAddr is the address this server's command listener binds.
func (c *Config) CmdAddr() string {
	return addr.Join(c.LocalIP, c.LocalPort+c.CmdPortShift)
}
