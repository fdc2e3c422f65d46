package agent

import (
	"fmt"
	"os"
	"time"
)

// DefaultServiceURL is the default endpoint for the sync service.
const DefaultServiceURL = "https://api.walsync.io"

// Config holds the configuration for the sync agent.
type Config struct {
	// WALDir is the directory containing the frame log.
	WALDir string

	// StateDir holds state.json; defaults to WALDir.
	StateDir string

	// StoreID identifies the replicated store on the remote.
	StoreID string

	ServiceURL string
	AuthKey    string

	// SyncInterval is the cadence of the sync loop.
	SyncInterval time.Duration

	// PullInterval is the cadence of remote watermark pulls.
	PullInterval time.Duration

	HTTPTimeout time.Duration

	// MetricsAddr, when set, serves prometheus metrics on that address.
	MetricsAddr string

	// ConfigPath, when set, is watched for runtime-tunable changes.
	ConfigPath string

	// Once runs a single sync cycle and exits.
	Once bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		StoreID:      "default",
		ServiceURL:   DefaultServiceURL,
		SyncInterval: 1 * time.Second,
		PullInterval: 5 * time.Second,
		HTTPTimeout:  30 * time.Second,
		AuthKey:      os.Getenv("WALSYNC_AUTH_KEY"),
	}
}

// Validate checks the configuration and sets derived defaults.
func (c *Config) Validate() error {
	if c.WALDir == "" {
		return fmt.Errorf("wal-dir is required")
	}
	if c.StateDir == "" {
		c.StateDir = c.WALDir
	}
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	if len(c.ServiceURL) > 0 && c.ServiceURL[len(c.ServiceURL)-1] == '/' {
		c.ServiceURL = c.ServiceURL[:len(c.ServiceURL)-1]
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.PullInterval <= 0 {
		return fmt.Errorf("pull interval must be positive")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence: it only applies values whose flag has not been set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
