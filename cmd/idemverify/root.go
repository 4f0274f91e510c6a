package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cgast/idemverify/internal/config"
	"github.com/cgast/idemverify/internal/logging"
)

// Default locations, relative to the working directory.
const (
	defaultConfigPath    = ".idemverify/config.yaml"
	defaultPlatformsPath = ".idemverify/platforms.yaml"
)

// rootOptions holds global flags and the configuration they resolve to.
type rootOptions struct {
	ConfigPath    string
	PlatformsPath string
	LogLevel      string
	Format        string
	StorePath     string

	cfg       config.Config
	platforms config.PlatformConfig
	logger    *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "idemverify",
		Short: "Verify that converged resources are in their declared state",
		Long: `idemverify inspects the resources a configuration run converged
(files, users, packages, services, mounts, ...) and checks every declared
attribute against the actual state, reporting one outcome per attribute.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultConfigPath, "runtime config file")
	cmd.PersistentFlags().StringVar(&opts.PlatformsPath, "platforms", defaultPlatformsPath, "platform credentials file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.StorePath, "store", "", "facts and history database")

	cmd.AddCommand(newVerifyCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newKindsCommand(opts))
	cmd.AddCommand(newFactsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// load reads both config files and lets flags override them.
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(o.ConfigPath)
	if err != nil {
		return wrapExitError(ExitCommandError, "load config", err)
	}
	platforms, err := config.LoadPlatformConfig(o.PlatformsPath)
	if err != nil {
		return wrapExitError(ExitCommandError, "load platform config", err)
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.Format != "" {
		cfg.Report.Format = o.Format
	}
	if o.StorePath != "" {
		cfg.Store.Path = o.StorePath
	}
	if err := cfg.Validate(); err != nil {
		return newExitError(ExitCommandError, fmt.Sprintf("invalid options: %v", err))
	}

	o.cfg = cfg
	o.platforms = platforms
	o.logger = logging.InitWriter(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (o *rootOptions) jsonOutput() bool {
	return o.cfg.Report.Format == "json"
}
