// Package config loads CLI and server settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the CLI and the playground servers.
type Config struct {
	Prompt       string `yaml:"prompt"`
	Debug        bool   `yaml:"debug"`
	DumpTokens   bool   `yaml:"dump_tokens"`
	DumpAST      bool   `yaml:"dump_ast"`
	MaxCallDepth int    `yaml:"max_call_depth"`

	Server ServerConfig `yaml:"server"`
}

// ServerConfig configures `lox serve`.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	GRPCPort       int           `yaml:"grpc_port"`
	RunTimeout     time.Duration `yaml:"run_timeout"`
	MaxSourceBytes int           `yaml:"max_source_bytes"`
	MaxSteps       int           `yaml:"max_steps"`
	ScriptsDir     string        `yaml:"scripts_dir"`
	DataFile       string        `yaml:"data_file"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Prompt:       "> ",
		MaxCallDepth: 2048,
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8787,
			GRPCPort:       8788,
			RunTimeout:     5 * time.Second,
			MaxSourceBytes: 64 << 10,
			MaxSteps:       1_000_000,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides server settings from LOX_HOST, LOX_PORT, LOX_GRPC_PORT,
// LOX_RUN_TIMEOUT, LOX_SCRIPTS_DIR and LOX_DATA_FILE.
func (c *Config) ApplyEnv() error {
	c.Server.Host = envOrDefault("LOX_HOST", c.Server.Host)
	c.Server.ScriptsDir = envOrDefault("LOX_SCRIPTS_DIR", c.Server.ScriptsDir)
	c.Server.DataFile = envOrDefault("LOX_DATA_FILE", c.Server.DataFile)

	if v := os.Getenv("LOX_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOX_PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOX_GRPC_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOX_GRPC_PORT %q: %w", v, err)
		}
		c.Server.GRPCPort = port
	}
	if v := os.Getenv("LOX_RUN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LOX_RUN_TIMEOUT %q: %w", v, err)
		}
		c.Server.RunTimeout = d
	}
	return c.Validate()
}

// Validate checks ranges.
func (c Config) Validate() error {
	if err := validPort("port", c.Server.Port); err != nil {
		return err
	}
	if err := validPort("grpc_port", c.Server.GRPCPort); err != nil {
		return err
	}
	if c.Server.RunTimeout <= 0 {
		return fmt.Errorf("run_timeout must be positive, got %s", c.Server.RunTimeout)
	}
	if c.Server.MaxSourceBytes <= 0 {
		return fmt.Errorf("max_source_bytes must be positive, got %d", c.Server.MaxSourceBytes)
	}
	if c.MaxCallDepth < 0 || c.Server.MaxSteps < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GRPCAddr returns the gRPC listen address.
func (s ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.GRPCPort)
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s out of range: %d", name, port)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
