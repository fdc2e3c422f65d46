package agent

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// fileConfig mirrors Config but uses strings for durations to stay TOML
// friendly.
type fileConfig struct {
	WALDir       string `toml:"wal_dir"`
	StateDir     string `toml:"state_dir"`
	StoreID      string `toml:"store_id"`
	ServiceURL   string `toml:"service_url"`
	AuthKey      string `toml:"api_key"`
	SyncInterval string `toml:"sync_interval"`
	PullInterval string `toml:"pull_interval"`
	HTTPTimeout  string `toml:"http_timeout"`
	MetricsAddr  string `toml:"metrics_addr"`
	Once         *bool  `toml:"once"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (fileConfig, error) {
	var fc fileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.walsync/config.toml if the user home
// directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".walsync", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc fileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("wal-dir", fc.WALDir, &cfg.WALDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("store-id", fc.StoreID, &cfg.StoreID)
	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	if err := s.setDuration("sync-interval", fc.SyncInterval, &cfg.SyncInterval); err != nil {
		return err
	}
	if err := s.setDuration("pull-interval", fc.PullInterval, &cfg.PullInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBool("once", fc.Once, &cfg.Once)
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
