package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the device configuration, stored as TOML.
type Config struct {
	DeviceID     string             `toml:"device_id"`
	BaseDir      string             `toml:"base_dir"`
	LogDir       string             `toml:"log_dir"`
	Store        StoreConfig        `toml:"store"`
	Remote       RemoteConfig       `toml:"remote"`
	Connectivity ConnectivityConfig `toml:"connectivity"`
	Log          LogConfig          `toml:"log"`
}

// StoreConfig selects the local store. Type is "sqlite" or "memory".
type StoreConfig struct {
	Type    string `toml:"type"`
	DataDir string `toml:"data_dir,omitempty"` // sqlite only
}

// RemoteConfig selects the remote gateway. Type is "http" or "memory".
type RemoteConfig struct {
	Type           string `toml:"type"`
	URL            string `toml:"url,omitempty"`             // http only
	TimeoutSeconds int    `toml:"timeout_seconds,omitempty"` // http only

	// Locations seeds the in-process remote (memory only).
	Locations []string `toml:"locations,omitempty"`
}

// Timeout is the per-request timeout, 30s when unset.
func (r RemoteConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// ConnectivityConfig decides how the device tells whether it is online.
// Mode is "probe" (ask the remote), "online" or "offline".
type ConnectivityConfig struct {
	Mode                string `toml:"mode"`
	ProbeTimeoutSeconds int    `toml:"probe_timeout_seconds,omitempty"`
}

// ProbeTimeout is the probe timeout, 5s when unset.
func (c ConnectivityConfig) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.ProbeTimeoutSeconds) * time.Second
}

// LogConfig bounds the rotating log file.
type LogConfig struct {
	MaxSizeMB  int `toml:"max_size_mb"`
	MaxBackups int `toml:"max_backups"`
	MaxAgeDays int `toml:"max_age_days"`
}

// NewConfig returns a Config for a new device rooted at baseDir.
// The remote URL is left for the operator to fill in.
func NewConfig(deviceID, baseDir string) *Config {
	return &Config{
		DeviceID: deviceID,
		BaseDir:  baseDir,
		LogDir:   filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Remote: RemoteConfig{
			Type:           "http",
			TimeoutSeconds: 30,
		},
		Connectivity: ConnectivityConfig{
			Mode:                "probe",
			ProbeTimeoutSeconds: 5,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Manager reads and writes Config values.
type Manager struct{}

// Read decodes a Config from r.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Write encodes cfg to w.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// ReadFromFile reads the Config stored at path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	cfg, err := (&Manager{}).Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Init writes cfg to path. It refuses to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := (&Manager{}).Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
