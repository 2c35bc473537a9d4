package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	cc := cfg.IPCClient()
	assert.Equal(t, "127.0.0.1", cc.Host)
	assert.Equal(t, 5560, cc.Port)
	assert.Equal(t, 3*time.Second, cc.Timeout)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout())

	sc := cfg.IPCServer()
	assert.Equal(t, 5560, sc.Port)
	assert.Equal(t, 5*time.Second, sc.ReadTimeout)
	assert.Equal(t, 4096, sc.MaxRequestBytes)
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eqbridge.yml")
	yml := `
client:
  host: 10.0.0.7
  port: 6000
  timeout_seconds: 1.5
server:
  state_port: 0
tool:
  log_file: /tmp/set_gains_tool.log
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "10.0.0.7", cfg.Client.Host)
	assert.Equal(t, 6000, cfg.Client.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.IPCClient().Timeout)
	assert.Equal(t, 0, cfg.Server.StatePort)
	assert.Equal(t, "/tmp/set_gains_tool.log", cfg.Tool.LogFile)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultCallTimeoutSeconds, cfg.Tool.CallTimeoutSeconds)
}

func TestParse_EmptyDocumentKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("# nothing here\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("client:\n  hots: 127.0.0.1\n"))
	assert.Error(t, err)
}

func TestParse_RejectsTrailingDocument(t *testing.T) {
	_, err := Parse([]byte("client:\n  port: 5560\n---\nclient:\n  port: 5561\n"))
	assert.Error(t, err)
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile("")
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	host := "192.168.1.20"
	port := 7000
	timeout := 0.5
	statePort := 0
	level := "warn"

	FlagOverrides{
		Host:           &host,
		Port:           &port,
		TimeoutSeconds: &timeout,
		StatePort:      &statePort,
		LogLevel:       &level,
	}.Apply(&cfg)

	assert.Equal(t, host, cfg.Client.Host)
	assert.Equal(t, port, cfg.Client.Port)
	assert.Equal(t, timeout, cfg.Client.TimeoutSeconds)
	assert.Equal(t, 0, cfg.Server.StatePort)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Nil pointers leave values alone.
	assert.Equal(t, DefaultPort, cfg.Server.Port)

	FlagOverrides{}.Apply(nil)
}

func TestValidate_Rejects(t *testing.T) {
	cases := map[string]func(*Config){
		"empty host":              func(c *Config) { c.Client.Host = "" },
		"client port zero":        func(c *Config) { c.Client.Port = 0 },
		"client port too big":     func(c *Config) { c.Client.Port = 70000 },
		"zero timeout":            func(c *Config) { c.Client.TimeoutSeconds = 0 },
		"server port negative":    func(c *Config) { c.Server.Port = -1 },
		"zero read timeout":       func(c *Config) { c.Server.ReadTimeoutMS = 0 },
		"tiny request limit":      func(c *Config) { c.Server.MaxRequestBytes = 10 },
		"state port clash":        func(c *Config) { c.Server.StatePort = c.Server.Port },
		"zero sample rate":        func(c *Config) { c.Server.SampleRate = 0 },
		"zero call timeout":       func(c *Config) { c.Tool.CallTimeoutSeconds = 0 },
		"bad log level":           func(c *Config) { c.Logging.Level = "loud" },
	}

	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestValidate_ClientTimeoutIndependentOfTool(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.TimeoutSeconds = 6
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateTool())

	cfg.Tool.CallTimeoutSeconds = 8
	assert.NoError(t, cfg.ValidateTool())

	cfg.Tool.CallTimeoutSeconds = 3
	cfg.Client.TimeoutSeconds = 3
	assert.ErrorContains(t, cfg.ValidateTool(), "tool.call_timeout_seconds")
}

func TestValidate_AllowsEphemeralServerPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/etc/eqbridge.yml", ExpandPath("/etc/eqbridge.yml"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, ".config/eqbridge.yml"), ExpandPath("~/.config/eqbridge.yml"))
	assert.Equal(t, "~other/x", ExpandPath("~other/x"))
}
