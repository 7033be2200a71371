package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tessro/spotpanel/internal/config"
	"github.com/tessro/spotpanel/internal/core"
	"github.com/tessro/spotpanel/internal/engine"
	panelerrors "github.com/tessro/spotpanel/internal/errors"
	"github.com/tessro/spotpanel/internal/logging"
	"github.com/tessro/spotpanel/internal/remote/httpapi"
	"github.com/tessro/spotpanel/internal/remote/local"
)

var (
	cfgFile string
	envFile string
	jsonOut bool
	verbose bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "spotpanel",
	Short: "Control a headless spotifyd speaker",
	Long: `spotpanel controls a spotifyd speaker running as a systemd user service.

It starts and stops the service, shows what is playing, controls playback
and volume, and edits the speaker's settings. Commands talk to a spotpanel
agent over HTTP or, with backend.transport = "local", to D-Bus directly.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.config/spotpanel/config.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load SPOTPANEL_* variables from this file")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, panelerrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}

// newLogger builds the logger for a command. Commands that own the terminal
// pass quiet so logs only go to a configured file.
func newLogger(quiet bool) (*zap.Logger, error) {
	return logging.New(logging.Config{
		Level:   cfg.Log.Level,
		File:    cfg.Log.File,
		Quiet:   quiet,
		Verbose: verbose,
	})
}

// newRemote returns the speaker facade selected by backend.transport.
func newRemote(log *zap.Logger) (core.Remote, error) {
	switch cfg.Backend.Transport {
	case "local":
		return newLocalRemote(log), nil
	case "http":
		client, err := httpapi.New(cfg.Backend.Address,
			httpapi.WithTimeout(millis(cfg.Backend.Timeout)),
			httpapi.WithRetries(cfg.Backend.Retries),
			httpapi.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("%w: unknown backend.transport %q", panelerrors.ErrInvalidConfig, cfg.Backend.Transport)
	}
}

func newLocalRemote(log *zap.Logger) *local.Remote {
	return local.New(local.Options{
		Unit:           cfg.Service.Unit,
		BusPrefix:      cfg.MPRIS.BusPrefix,
		BusAddressFile: cfg.MPRIS.BusAddressFile,
		SettingsFile:   cfg.Speaker.SettingsFile,
		ConfigFile:     cfg.Speaker.ConfigFile,
		HookPath:       cfg.Speaker.HookPath,
		Logger:         log,
	})
}

func engineOptions(log *zap.Logger) engine.Options {
	return engine.Options{
		Tick:           millis(cfg.Engine.Tick),
		Debounce:       millis(cfg.Engine.Debounce),
		PollFallback:   millis(cfg.Engine.PollFallback),
		StatusInterval: millis(cfg.Engine.StatusInterval),
		CallTimeout:    millis(cfg.Backend.Timeout),
		Logger:         log,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
