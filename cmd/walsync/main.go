package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bft-labs/walsync/internal/agent"
)

const helpDescription = `
Replicate an embedded store's write-ahead log to a sync service.

Highlights:
  - Every push decision starts from a fresh read scope, so a lagging
    frame-count cache can never silently skip a push.
  - Detects log truncation (epoch change) and refuses to compute frame
    ranges across generations.
  - Configure via file, environment (WALSYNC_*), or flags.
`

var exampleUsage = strings.TrimSpace(`
  walsync --wal-dir /var/lib/mystore/wal --auth-key <api-key>
  walsync --config $HOME/.walsync/config.toml --once
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := agent.DefaultConfig()
	var (
		cfgPath string
		logFile string
	)

	root := &cobra.Command{
		Use:     "walsync",
		Short:   "Replicate a write-ahead log to a sync service",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			if logFile != "" {
				agent.SetLogger(zerolog.New(&lumberjack.Logger{
					Filename:   logFile,
					MaxSize:    64, // MB
					MaxBackups: 3,
				}).With().Timestamp().Logger())
			}
			log := agent.Logger()

			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = agent.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && agent.FileExists(cfgFile) {
				fc, err := agent.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := agent.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
				cfg.ConfigPath = cfgFile
			}

			if err := agent.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logCfg := cfg
			if len(logCfg.AuthKey) > 0 {
				logCfg.AuthKey = "*****"
			}
			log.Info().Interface("config", logCfg).Msg("configuration")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				select {
				case <-sigCh:
					log.Info().Msg("received signal, stopping...")
					cancel()
				case <-ctx.Done():
				}
			}()

			err := agent.Run(ctx, cfg)
			if err != nil && ctx.Err() != nil {
				// shutdown on signal is not a failure
				return nil
			}
			return err
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.walsync/config.toml)")
	root.Flags().StringVar(&cfg.WALDir, "wal-dir", cfg.WALDir, "directory containing the frame log")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "state directory for state.json (defaults to wal-dir)")
	root.Flags().StringVar(&cfg.StoreID, "store-id", cfg.StoreID, "store identifier on the sync service")

	root.Flags().StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, fmt.Sprintf("base service URL (defaults to %s)", agent.DefaultServiceURL))
	root.Flags().StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for authentication")

	root.Flags().DurationVar(&cfg.SyncInterval, "sync-interval", cfg.SyncInterval, "sync loop interval")
	root.Flags().DurationVar(&cfg.PullInterval, "pull-interval", cfg.PullInterval, "remote watermark pull interval")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP timeout")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address to serve prometheus metrics on (disabled when empty)")
	root.Flags().StringVar(&logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "run a single sync cycle and exit")

	if err := root.Execute(); err != nil {
		logger := agent.Logger()
		logger.Error().Err(err).Msg("walsync")
		os.Exit(1)
	}
}
