// Package config provides configuration loading and defaults for the rvkernel-mcp server.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when RVKERNEL_CONFIG_PATH is unset.
const DefaultConfigPath = "/data/local/tmp/rvkernel/config.yaml"

// Shell backends.
const (
	BackendLocal = "local"
	BackendSSH   = "ssh"
)

// ResourceFilter holds allowlist and denylist glob patterns.
type ResourceFilter struct {
	Allowlist []string `yaml:"allowlist"`
	Denylist  []string `yaml:"denylist"`
}

// SafetyConfig restricts which tunables may be written.
type SafetyConfig struct {
	Tunables ResourceFilter `yaml:"tunables"`
}

// SSHConfig describes a device reached over SSH. Exactly one of KeyPath and
// Password is normally set; when both are empty the SSH agent is used.
type SSHConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	KeyPath        string `yaml:"key_path"`
	Passphrase     string `yaml:"passphrase"`
	Password       string `yaml:"password"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	UseSu          bool   `yaml:"use_su"`
}

// ShellConfig selects and configures the root shell.
type ShellConfig struct {
	// Backend is "local" (persistent su session) or "ssh".
	Backend string `yaml:"backend"`
	// SuBinary is the local elevation binary. "sh" runs without root.
	SuBinary string    `yaml:"su_binary"`
	SSH      SSHConfig `yaml:"ssh"`
	// CommandTimeout is the per-command timeout in seconds (SSH only).
	CommandTimeout int `yaml:"command_timeout"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled   bool   `yaml:"enabled"`
	LogPath   string `yaml:"log_path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// ServerConfig holds network and authentication settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	AuthToken string `yaml:"auth_token"`
}

// Config is the top-level configuration structure for the rvkernel-mcp server.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Shell  ShellConfig  `yaml:"shell"`
	Safety SafetyConfig `yaml:"safety"`
	Audit  AuditConfig  `yaml:"audit"`
	// SettingsPath is the user settings file, watched for changes.
	SettingsPath string `yaml:"settings_path"`
	// PollInterval overrides the settings file's polling interval when set.
	PollInterval Duration `yaml:"poll_interval"`
}

// Duration is a time.Duration that unmarshals from strings such as "2s".
type Duration time.Duration

// UnmarshalYAML accepts a Go duration string or a bare number of
// milliseconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var ms int64
	if err := value.Decode(&ms); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in its string form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig reads and parses a YAML configuration file from the given path.
// Keys absent from the file keep their DefaultConfig values. On error, nil
// is returned for the config pointer.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a new Config populated with sensible default values.
// Each call returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Shell: ShellConfig{
			Backend:        BackendLocal,
			SuBinary:       "su",
			CommandTimeout: 5,
			SSH: SSHConfig{
				Port:  22,
				UseSu: true,
			},
		},
		Audit: AuditConfig{
			Enabled: true,
			LogPath: "/data/local/tmp/rvkernel/audit.log",
		},
		SettingsPath: "/data/local/tmp/rvkernel/settings.yaml",
	}
}

// Validate reports configuration that cannot produce a working shell.
func (c *Config) Validate() error {
	switch c.Shell.Backend {
	case BackendLocal:
		if c.Shell.SuBinary == "" {
			return fmt.Errorf("shell.su_binary is required for the local backend")
		}
	case BackendSSH:
		if c.Shell.SSH.Host == "" {
			return fmt.Errorf("shell.ssh.host is required for the ssh backend")
		}
		if c.Shell.SSH.User == "" {
			return fmt.Errorf("shell.ssh.user is required for the ssh backend")
		}
	default:
		return fmt.Errorf("unknown shell backend %q", c.Shell.Backend)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// ApplyEnvOverrides updates cfg in place with values from environment variables.
// Recognized variables:
//   - RVKERNEL_AUTH_TOKEN overrides cfg.Server.AuthToken
//   - RVKERNEL_SHELL_BACKEND overrides cfg.Shell.Backend
//   - RVKERNEL_SSH_HOST overrides cfg.Shell.SSH.Host
//   - RVKERNEL_POLL_INTERVAL overrides cfg.PollInterval (e.g. "2s")
//
// An unparseable RVKERNEL_POLL_INTERVAL is returned as an error and leaves
// cfg.PollInterval unchanged.
func ApplyEnvOverrides(cfg *Config) error {
	if token := os.Getenv("RVKERNEL_AUTH_TOKEN"); token != "" {
		cfg.Server.AuthToken = token
	}
	if backend := os.Getenv("RVKERNEL_SHELL_BACKEND"); backend != "" {
		cfg.Shell.Backend = backend
	}
	if host := os.Getenv("RVKERNEL_SSH_HOST"); host != "" {
		cfg.Shell.SSH.Host = host
	}
	if raw := os.Getenv("RVKERNEL_POLL_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("RVKERNEL_POLL_INTERVAL: %w", err)
		}
		cfg.PollInterval = Duration(d)
	}
	return nil
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.Server.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.Server.AuthToken != "" {
		return cfg.Server.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.Server.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
