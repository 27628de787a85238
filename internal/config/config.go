// Package config loads the JSON configuration shared by the analysis server
// and the client.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/codefionn/pytools/internal/consts"
)

const appName = "pytools"

// Environment variables read by ApplyEnv and GetConfigPath.
const (
	EnvConfig   = "PYTOOLS_CONFIG"
	EnvHost     = "PYTOOLS_HOST"
	EnvPort     = "PYTOOLS_PORT"
	EnvLogLevel = "PYTOOLS_LOG_LEVEL"
	EnvLogPath  = "PYTOOLS_LOG_PATH"
)

// ServerConfig describes how the client starts the server.
type ServerConfig struct {
	// Exec is the server command line. Empty means the pytools-server
	// binary installed next to the client.
	Exec       []string          `json:"exec,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
	// StartupGraceMillis is how long a spawned server is watched for an
	// early exit.
	StartupGraceMillis int `json:"startup_grace_ms"`
	// ReadTimeoutSeconds bounds reading one request (0 = no limit).
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`
}

// FormatterConfig selects the external formatter.
type FormatterConfig struct {
	// Exec is the formatter command line; it reads the source on stdin and
	// writes the formatted source to stdout.
	Exec           []string `json:"exec"`
	TimeoutSeconds int      `json:"timeout_seconds"`
}

// FeatureConfig toggles editor features individually.
type FeatureConfig struct {
	Completion  bool `json:"document_completion"`
	Hover       bool `json:"document_hover"`
	Formatting  bool `json:"document_formatting"`
	Diagnostics bool `json:"document_publish_diagnostic"`
}

// Config represents the application configuration
type Config struct {
	Host                  string `json:"host"`
	Port                  int    `json:"port"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
	BufferSize            int    `json:"buffer_size"`
	MaxContentLength      int    `json:"max_content_length"`

	LogLevel  string `json:"log_level"`
	LogPath   string `json:"log_path"`
	PidPath   string `json:"pid_path"`
	LockPath  string `json:"lock_path"`
	IndexPath string `json:"index_path,omitempty"` // empty keeps the index in memory

	Server    ServerConfig    `json:"server"`
	Formatter FormatterConfig `json:"formatter"`
	Features  FeatureConfig   `json:"features"`
}

func defaultConfigDir() string {
	switch runtime.GOOS {
	case "windows":
		if appData := strings.TrimSpace(os.Getenv("APPDATA")); appData != "" {
			return filepath.Join(appData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Roaming", appName)
	default:
		if configHome := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); configHome != "" {
			return filepath.Join(configHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

func defaultStateDir() string {
	switch runtime.GOOS {
	case "linux":
		if stateHome := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); stateHome != "" {
			return filepath.Join(stateHome, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".local", "state", appName)
	case "windows":
		if localAppData := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); localAppData != "" {
			return filepath.Join(localAppData, appName)
		}
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, "AppData", "Local", appName)
	default:
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, ".config", appName)
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	stateDir := defaultStateDir()
	return &Config{
		Host:                  consts.DefaultHost,
		Port:                  consts.DefaultPort,
		RequestTimeoutSeconds: int(consts.Timeout30Seconds / time.Second),
		BufferSize:            consts.BufferSize1KB,
		MaxContentLength:      consts.BufferSize64MB,
		LogLevel:              "info",
		LogPath:               filepath.Join(stateDir, "pytools-server.log"),
		PidPath:               filepath.Join(stateDir, "pytools-server.pid"),
		LockPath:              filepath.Join(stateDir, "pytools-spawn.lock"),
		Server: ServerConfig{
			StartupGraceMillis: int(consts.Timeout5Seconds / time.Millisecond),
		},
		Formatter: FormatterConfig{
			Exec:           []string{"black", "-q", "-"},
			TimeoutSeconds: int(consts.Timeout10Seconds / time.Second),
		},
		Features: FeatureConfig{
			Completion:  true,
			Hover:       true,
			Formatting:  true,
			Diagnostics: true,
		},
	}
}

// GetConfigPath returns the config file path, honouring PYTOOLS_CONFIG.
func GetConfigPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfig)); p != "" {
		return p
	}
	return filepath.Join(defaultConfigDir(), "config.json")
}

// Load reads the config at path over the defaults. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	defaults := DefaultConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.PidPath == "" {
		config.PidPath = defaults.PidPath
	}
	if config.LockPath == "" {
		config.LockPath = defaults.LockPath
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}

	return config, nil
}

// ApplyEnv overrides fields from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvHost)); v != "" {
		c.Host = v
	}
	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Port = port
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(getenv(EnvLogPath)); v != "" {
		c.LogPath = v
	}
	return nil
}

// Validate checks the fields that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("request_timeout_seconds must be positive"))
	}
	if c.MaxContentLength < 0 {
		errs = append(errs, errors.New("max_content_length must not be negative"))
	}
	if c.Server.StartupGraceMillis < 0 {
		errs = append(errs, errors.New("server.startup_grace_ms must not be negative"))
	}
	if c.Server.ReadTimeoutSeconds < 0 {
		errs = append(errs, errors.New("server.read_timeout_seconds must not be negative"))
	}
	return errors.Join(errs...)
}

// Save writes the config as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequestTimeout is the client-side timeout of a single call.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// StartupGrace is the window in which a spawned server's exit is observed.
func (c *Config) StartupGrace() time.Duration {
	return time.Duration(c.Server.StartupGraceMillis) * time.Millisecond
}

// ReadTimeout bounds reading one request on the server (0 = none).
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

// FormatterTimeout bounds one run of the external formatter.
func (c *Config) FormatterTimeout() time.Duration {
	return time.Duration(c.Formatter.TimeoutSeconds) * time.Second
}

// Disabled returns the features switched off, keyed by method name, in the
// form sent with initialize.
func (f FeatureConfig) Disabled() map[string]bool {
	out := make(map[string]bool)
	if !f.Completion {
		out["document_completion"] = false
	}
	if !f.Hover {
		out["document_hover"] = false
	}
	if !f.Formatting {
		out["document_formatting"] = false
	}
	if !f.Diagnostics {
		out["document_publish_diagnostic"] = false
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
