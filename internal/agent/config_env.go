package agent

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (WALSYNC_*). It respects flags that have been explicitly set.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("wal-dir", os.Getenv("WALSYNC_WAL_DIR"), &cfg.WALDir)
	s.setString("state-dir", os.Getenv("WALSYNC_STATE_DIR"), &cfg.StateDir)
	s.setString("store-id", os.Getenv("WALSYNC_STORE_ID"), &cfg.StoreID)
	s.setString("service-url", os.Getenv("WALSYNC_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("WALSYNC_AUTH_KEY"), &cfg.AuthKey)
	s.setString("metrics-addr", os.Getenv("WALSYNC_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("sync-interval", os.Getenv("WALSYNC_SYNC_INTERVAL"), &cfg.SyncInterval); err != nil {
		return err
	}
	if err := s.setDuration("pull-interval", os.Getenv("WALSYNC_PULL_INTERVAL"), &cfg.PullInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("WALSYNC_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("WALSYNC_ONCE"), &cfg.Once)
	return nil
}
