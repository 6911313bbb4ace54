// Package config defines the RAD configuration schema, defaults, file
// loading, and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/clivendon/RAD/internal/errors"
)

// Default poll intervals for the watcher. The waiting interval applies while
// the nmap output file does not exist yet; the scanning interval applies
// while the file exists but the completion marker has not appeared.
const (
	defaultPollIntervalWaiting  = Duration(5 * time.Second)
	defaultPollIntervalScanning = Duration(10 * time.Second)

	defaultScanTimeout = Duration(30 * time.Minute)
	defaultAPIPort     = 8061
)

// Duration wraps time.Duration so YAML values like "30s" parse. Plain
// integers are accepted as nanoseconds.
type Duration time.Duration

// Duration returns the wrapped time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return errors.WrapConfigError(errors.CodeConfiguration, "invalid duration", err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}
	return errors.NewConfigFieldError(errors.CodeConfiguration, "invalid duration", "", value.Value)
}

// Config represents the complete RAD configuration.
type Config struct {
	// Target host or IP to run recon against.
	Target string `yaml:"target" json:"target"`

	// Watch configures the nmap output file watcher.
	Watch WatchConfig `yaml:"watch" json:"watch"`

	// Nmap configures the service scan launcher.
	Nmap NmapConfig `yaml:"nmap" json:"nmap"`

	// Ferox configures the content-discovery dispatcher.
	Ferox FeroxConfig `yaml:"ferox" json:"ferox"`

	// Database configures the run-history store.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// API configures the status HTTP server.
	API APIConfig `yaml:"api" json:"api"`

	// Daemon configures scheduled recurring recon.
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WatchConfig holds watcher settings.
type WatchConfig struct {
	// File is the nmap -oN output file to poll. Empty means
	// nmap_<target>.txt in the working directory.
	File string `yaml:"file" json:"file"`

	// PollIntervalWaiting is the delay between existence checks while the
	// file is absent.
	PollIntervalWaiting Duration `yaml:"poll_interval_waiting" json:"poll_interval_waiting" validate:"gt=0"`

	// PollIntervalScanning is the delay between reads while the scan is
	// still in progress.
	PollIntervalScanning Duration `yaml:"poll_interval_scanning" json:"poll_interval_scanning" validate:"gt=0"`
}

// NmapConfig holds nmap launch settings.
type NmapConfig struct {
	// Binary is the nmap executable name or path.
	Binary string `yaml:"binary" json:"binary" validate:"required"`

	// ScanTimeout bounds a single nmap run.
	ScanTimeout Duration `yaml:"scan_timeout" json:"scan_timeout" validate:"gt=0"`
}

// FeroxConfig holds content-discovery dispatch settings.
type FeroxConfig struct {
	// Binary is the feroxbuster executable name or path.
	Binary string `yaml:"binary" json:"binary" validate:"required"`

	// Extensions are the file-extension filters passed with -x.
	Extensions []string `yaml:"extensions" json:"extensions" validate:"min=1"`

	// OutputDir is where feroxbuster_<host>_<port>.txt files are written.
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

// DatabaseConfig holds run-history store settings.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path" json:"path" validate:"required"`
}

// APIConfig holds status server settings.
type APIConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	Port       int    `yaml:"port" json:"port" validate:"gte=1,lte=65535"`
}

// DaemonConfig holds scheduled-mode settings.
type DaemonConfig struct {
	// Schedule is a cron expression (robfig/cron syntax, @every accepted).
	Schedule string `yaml:"schedule" json:"schedule"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=text json"`
	Output string `yaml:"output" json:"output" validate:"required"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Target: "",
		Watch: WatchConfig{
			File:                 "",
			PollIntervalWaiting:  defaultPollIntervalWaiting,
			PollIntervalScanning: defaultPollIntervalScanning,
		},
		Nmap: NmapConfig{
			Binary:      "nmap",
			ScanTimeout: defaultScanTimeout,
		},
		Ferox: FeroxConfig{
			Binary:     "feroxbuster",
			Extensions: []string{"txt", "html", "php"},
			OutputDir:  ".",
		},
		Database: DatabaseConfig{
			Path: "rad.db",
		},
		API: APIConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1",
			Port:       defaultAPIPort,
		},
		Daemon: DaemonConfig{
			Schedule:        "@every 12h",
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// Load loads configuration from a file, applying defaults for anything the
// file does not set. A missing file is not an error: defaults are returned.
func Load(path string) (*Config, error) {
	config := Default()

	if path == "" {
		return config, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to read config file", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.WrapConfigError(errors.CodeConfiguration, "failed to parse YAML config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to create config directory", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to marshal config", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapConfigError(errors.CodeConfiguration, "failed to write config file", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.WrapConfigError(errors.CodeValidation, "configuration validation failed", err)
	}

	if c.Watch.PollIntervalWaiting <= 0 {
		return errors.ErrConfigInvalid("watch.poll_interval_waiting", c.Watch.PollIntervalWaiting)
	}
	if c.Watch.PollIntervalScanning <= 0 {
		return errors.ErrConfigInvalid("watch.poll_interval_scanning", c.Watch.PollIntervalScanning)
	}
	for _, ext := range c.Ferox.Extensions {
		if ext == "" {
			return errors.ErrConfigInvalid("ferox.extensions", ext)
		}
	}

	return nil
}

// WatchFile returns the nmap output file to poll, defaulting to
// nmap_<target>.txt when not configured explicitly.
func (c *Config) WatchFile() string {
	if c.Watch.File != "" {
		return c.Watch.File
	}
	return NmapOutputFile(c.Target)
}

// NmapOutputFile returns the conventional -oN output file name for a target.
func NmapOutputFile(target string) string {
	return fmt.Sprintf("nmap_%s.txt", target)
}

// APIAddress returns the full status server address.
func (c *Config) APIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}
