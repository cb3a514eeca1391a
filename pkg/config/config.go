// Package config provides application configuration with CLI flag parsing
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/idlewatch/idlewatch/pkg/activity"
	"github.com/idlewatch/idlewatch/pkg/health"
)

// Environment variables consulted by Normalize for flags left unset
const (
	EnvShutdownTime = "SHUTDOWN_TIME"      // idle threshold in integer seconds
	EnvPort         = "IDLEWATCH_PORT"     // listen port
	EnvUpstream     = "IDLEWATCH_UPSTREAM" // upstream base URL
)

// Defaults applied by Normalize when neither flag, file, nor env provides a value
const (
	DefaultShutdownTime       = 300 // seconds
	DefaultPort               = 8888
	DefaultReadyCheckPath     = health.DefaultCheckPath
	DefaultReadyTimeout       = int(health.DefaultTimeout / time.Second)
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultActivityBufferSize = activity.DefaultEventCapacity
)

// Config holds application configuration
type Config struct {
	// Upstream
	Upstream    string `yaml:"upstream"`     // Base URL of the proxied application
	StripPrefix string `yaml:"strip_prefix"` // Optional path prefix stripped before forwarding

	// Idle shutdown
	ShutdownTime int `yaml:"shutdown_time"` // Idle threshold in seconds

	// Readiness
	ReadyCheckPath string `yaml:"ready_check_path"`
	ReadyTimeout   int    `yaml:"ready_timeout"` // seconds

	// Logging
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`
	ShowCaller bool   `yaml:"log_caller"`

	// Server
	Port               int `yaml:"port"` // Listen port (0 = allocate a free one)
	ActivityBufferSize int `yaml:"activity_buffer_size"`

	// ConfigFile is flag-only and never read from YAML
	ConfigFile string `yaml:"-"`
}

// NewFromFlags creates a Config from command line flags using cobra
// Returns the cobra command and config; the caller installs its RunE
func NewFromFlags(version, buildTime string) (*cobra.Command, *Config) {
	cfg := &Config{}

	rootCmd := &cobra.Command{
		Use:     "idlewatch [flags]",
		Short:   "Idle-shutdown sidecar proxy for long-running web applications",
		Version: fmt.Sprintf("%s (built %s)", version, buildTime),
		Long: `Reverse-proxies to an upstream application, records activity on every
request, and hard-exits the process once no activity has been seen for the
configured threshold. Includes a control API for external activity reports,
status inspection, and URL template probing.`,
	}

	// Core flags
	rootCmd.Flags().StringVar(&cfg.Upstream, "upstream", "",
		"Upstream base URL to proxy to (e.g. http://127.0.0.1:8501)")
	rootCmd.Flags().IntVar(&cfg.Port, "port", 0,
		"Port for the proxy server to listen on")
	rootCmd.Flags().IntVar(&cfg.ShutdownTime, "shutdown-time", 0,
		"Idle threshold in seconds before the process exits (falls back to SHUTDOWN_TIME, default 300)")
	rootCmd.Flags().StringVar(&cfg.StripPrefix, "strip-prefix", "",
		"Path prefix to strip before forwarding to the upstream")

	// Readiness flags
	rootCmd.Flags().StringVar(&cfg.ReadyCheckPath, "ready-check-path", "",
		"Upstream readiness check path (e.g. /, /health)")
	rootCmd.Flags().IntVar(&cfg.ReadyTimeout, "ready-timeout", 0,
		"Upstream readiness timeout in seconds")

	// Logging flags
	rootCmd.Flags().StringVar(&cfg.LogLevel, "log-level", "",
		"Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&cfg.LogFormat, "log-format", "",
		"Log format (json, pretty)")
	rootCmd.Flags().BoolVar(&cfg.ShowCaller, "log-caller", false,
		"Show file:line in logs")

	// Activity history flags
	rootCmd.Flags().IntVar(&cfg.ActivityBufferSize, "activity-buffer-size", 0,
		"Number of activity events to keep in memory")

	// Config file
	rootCmd.Flags().StringVar(&cfg.ConfigFile, "config", "",
		"Optional YAML config file; explicit flags and env take precedence")

	return rootCmd, cfg
}

// Normalize resolves the final configuration: YAML file values fill fields
// the flags left unset, then environment variables, then defaults.
// SHUTDOWN_TIME is read exactly once, here; a malformed value is a startup error.
func (c *Config) Normalize() error {
	if c.ConfigFile != "" {
		if err := c.applyFile(c.ConfigFile); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if c.Port == 0 {
		if envPort := os.Getenv(EnvPort); envPort != "" {
			port, err := strconv.Atoi(envPort)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", EnvPort, envPort, err)
			}
			c.Port = port
		}
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.Upstream == "" {
		c.Upstream = os.Getenv(EnvUpstream)
	}
	if c.Upstream == "" {
		return fmt.Errorf("upstream is required (--upstream or %s)", EnvUpstream)
	}
	u, err := url.Parse(c.Upstream)
	if err != nil {
		return fmt.Errorf("invalid upstream URL %q: %w", c.Upstream, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("upstream URL %q must use http or https", c.Upstream)
	}

	if c.ShutdownTime == 0 {
		if envTime := os.Getenv(EnvShutdownTime); envTime != "" {
			seconds, err := strconv.Atoi(envTime)
			if err != nil {
				return fmt.Errorf("invalid %s value %q: %w", EnvShutdownTime, envTime, err)
			}
			c.ShutdownTime = seconds
		}
	}
	if c.ShutdownTime == 0 {
		c.ShutdownTime = DefaultShutdownTime
	}

	if c.ReadyCheckPath == "" {
		c.ReadyCheckPath = DefaultReadyCheckPath
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = DefaultReadyTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.ActivityBufferSize == 0 {
		c.ActivityBufferSize = DefaultActivityBufferSize
	}

	return nil
}

// Threshold returns the idle threshold as a duration
func (c *Config) Threshold() time.Duration {
	return time.Duration(c.ShutdownTime) * time.Second
}

// applyFile merges YAML file values into fields still at their zero value,
// so explicit flags always win over the file
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if c.Upstream == "" {
		c.Upstream = file.Upstream
	}
	if c.StripPrefix == "" {
		c.StripPrefix = file.StripPrefix
	}
	if c.ShutdownTime == 0 {
		c.ShutdownTime = file.ShutdownTime
	}
	if c.ReadyCheckPath == "" {
		c.ReadyCheckPath = file.ReadyCheckPath
	}
	if c.ReadyTimeout == 0 {
		c.ReadyTimeout = file.ReadyTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = file.LogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = file.LogFormat
	}
	if !c.ShowCaller {
		c.ShowCaller = file.ShowCaller
	}
	if c.Port == 0 {
		c.Port = file.Port
	}
	if c.ActivityBufferSize == 0 {
		c.ActivityBufferSize = file.ActivityBufferSize
	}

	return nil
}
