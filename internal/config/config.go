// Package config holds the YAML configuration shared by the eqbridge commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/binhminh9527/Equalizer-Agent/internal/ipc"
	"github.com/binhminh9527/Equalizer-Agent/internal/logging"
)

// Defaults. Keep these aligned with the CLI usage text.
const (
	DefaultHost               = "127.0.0.1"
	DefaultPort               = 5560
	DefaultTimeoutSeconds     = 3.0
	DefaultCallTimeoutSeconds = 5.0
	DefaultReadTimeoutMS      = 5000
	DefaultMaxRequestBytes    = 4096
	DefaultStatePort          = 5561
	DefaultSampleRate         = 48000
)

// Config is the top-level YAML configuration.
//
// Defaults, file values and flag overrides are layered in that order, then
// Validate is called once so the rest of the code can assume a well-formed
// config.
type Config struct {
	// Gain IPC client (reference client, tool boundary)
	Client ClientConfig `yaml:"client"`

	// Reference server
	Server ServerConfig `yaml:"server"`

	// Agent tool boundary
	Tool ToolConfig `yaml:"tool"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type ClientConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	TimeoutSeconds float64 `yaml:"timeout_seconds"`
}

type ServerConfig struct {
	ListenHost      string `yaml:"listen_host"`
	Port            int    `yaml:"port"`
	ReadTimeoutMS   int    `yaml:"read_timeout_ms"`
	MaxRequestBytes int    `yaml:"max_request_bytes"`
	ReusePort       bool   `yaml:"reuse_port,omitempty"`
	StatePort       int    `yaml:"state_port"` // 0 disables the state feed
	SampleRate      int    `yaml:"sample_rate"` // default design rate for the response command
}

type ToolConfig struct {
	CallTimeoutSeconds float64 `yaml:"call_timeout_seconds"`
	LogFile            string  `yaml:"log_file,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Client: ClientConfig{
			Host:           DefaultHost,
			Port:           DefaultPort,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Server: ServerConfig{
			ListenHost:      DefaultHost,
			Port:            DefaultPort,
			ReadTimeoutMS:   DefaultReadTimeoutMS,
			MaxRequestBytes: DefaultMaxRequestBytes,
			StatePort:       DefaultStatePort,
			SampleRate:      DefaultSampleRate,
		},
		Tool: ToolConfig{
			CallTimeoutSeconds: DefaultCallTimeoutSeconds,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile reads and parses a YAML config file on top of DefaultConfig.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
func LoadFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of DefaultConfig.
func Parse(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	// An empty document leaves the defaults untouched.
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var trailing yaml.Node
	if err := dec.Decode(&trailing); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries values from command-line flags. Each override is
// only applied when its pointer is non-nil, even if it points at a zero value.
type FlagOverrides struct {
	Host           *string
	Port           *int
	TimeoutSeconds *float64

	ListenHost *string
	ServerPort *int
	StatePort  *int
	ReusePort  *bool

	CallTimeoutSeconds *float64
	ToolLogFile        *string

	LogLevel *string
}

// Apply merges the overrides into cfg.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}

	if o.Host != nil {
		cfg.Client.Host = *o.Host
	}
	if o.Port != nil {
		cfg.Client.Port = *o.Port
	}
	if o.TimeoutSeconds != nil {
		cfg.Client.TimeoutSeconds = *o.TimeoutSeconds
	}

	if o.ListenHost != nil {
		cfg.Server.ListenHost = *o.ListenHost
	}
	if o.ServerPort != nil {
		cfg.Server.Port = *o.ServerPort
	}
	if o.StatePort != nil {
		cfg.Server.StatePort = *o.StatePort
	}
	if o.ReusePort != nil {
		cfg.Server.ReusePort = *o.ReusePort
	}

	if o.CallTimeoutSeconds != nil {
		cfg.Tool.CallTimeoutSeconds = *o.CallTimeoutSeconds
	}
	if o.ToolLogFile != nil {
		cfg.Tool.LogFile = *o.ToolLogFile
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
func (c *Config) Validate() error {
	// Client
	if c.Client.Host == "" {
		return errors.New("client.host must not be empty")
	}
	if !validPort(c.Client.Port) {
		return fmt.Errorf("client.port must be between 1 and 65535 (got %d)", c.Client.Port)
	}
	if c.Client.TimeoutSeconds <= 0 {
		return errors.New("client.timeout_seconds must be > 0")
	}

	// Server
	if c.Server.Port != 0 && !validPort(c.Server.Port) {
		return fmt.Errorf("server.port must be between 0 and 65535 (got %d)", c.Server.Port)
	}
	if c.Server.ReadTimeoutMS <= 0 {
		return errors.New("server.read_timeout_ms must be > 0")
	}
	if c.Server.MaxRequestBytes < 64 {
		return errors.New("server.max_request_bytes must be >= 64")
	}
	if c.Server.StatePort != 0 && !validPort(c.Server.StatePort) {
		return fmt.Errorf("server.state_port must be 0 or between 1 and 65535 (got %d)", c.Server.StatePort)
	}
	if c.Server.StatePort != 0 && c.Server.StatePort == c.Server.Port {
		return errors.New("server.state_port must differ from server.port")
	}
	if c.Server.SampleRate <= 0 {
		return errors.New("server.sample_rate must be > 0")
	}

	// Tool
	if c.Tool.CallTimeoutSeconds <= 0 {
		return errors.New("tool.call_timeout_seconds must be > 0")
	}

	// Logging
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ValidateTool checks the settings only the agent tool depends on. The outer
// call budget must exceed the inner socket timeout so a slow but successful
// exchange is not cut short.
func (c *Config) ValidateTool() error {
	if c.Tool.CallTimeoutSeconds <= c.Client.TimeoutSeconds {
		return fmt.Errorf("tool.call_timeout_seconds (%g) must be > client.timeout_seconds (%g)",
			c.Tool.CallTimeoutSeconds, c.Client.TimeoutSeconds)
	}
	return nil
}

// IPCClient converts the file config into the IPC client config.
func (c *Config) IPCClient() ipc.ClientConfig {
	return ipc.ClientConfig{
		Host:    c.Client.Host,
		Port:    c.Client.Port,
		Timeout: seconds(c.Client.TimeoutSeconds),
	}
}

// IPCServer converts the file config into the IPC server config.
func (c *Config) IPCServer() ipc.ServerConfig {
	return ipc.ServerConfig{
		ListenHost:      c.Server.ListenHost,
		Port:            c.Server.Port,
		ReadTimeout:     time.Duration(c.Server.ReadTimeoutMS) * time.Millisecond,
		MaxRequestBytes: c.Server.MaxRequestBytes,
		ReusePort:       c.Server.ReusePort,
	}
}

// CallTimeout is the outer budget for one tool invocation.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.Tool.CallTimeoutSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
