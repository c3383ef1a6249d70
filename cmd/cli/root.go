package cli

import (
	"context"
	"fmt"

	"github.com/kcaldas/devkit/internal/di"
	"github.com/kcaldas/devkit/pkg/config"
	"github.com/kcaldas/devkit/pkg/devkit"
	"github.com/kcaldas/devkit/pkg/version"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFiles []string
	dataDir  string
	verbose  bool
	quiet    bool

	// Toolkit instance - initialized once per invocation
	toolkit *devkit.Toolkit
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "devkit",
	Short:   "Development-time debugging toolkit",
	Long:    `devkit collects logs, network traffic, performance data and state history, and exposes them through a debug console, reports and a remote debugger.`,
	Version: version.GetVersion(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !needsToolkit(cmd) {
			return nil
		}
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}

		cfg := config.Load(config.NewConfigManager())
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		if quiet {
			cfg.Log.Level = "error"
		} else if verbose {
			cfg.Log.Level = "debug"
		}

		toolkit = di.InitializeToolkit(cfg)
		if err := toolkit.Start(context.Background()); err != nil {
			return fmt.Errorf("failed to start toolkit: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if toolkit == nil {
			return nil
		}
		return toolkit.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand provided - start the console
		return runConsole(cmd, toolkit)
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "load environment variables from these .env files (default .env)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for settings, reports and the database (overrides DEVKIT_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug level)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")

	addCommands()
}

// addCommands adds all CLI subcommands to the root command
func addCommands() {
	provider := func() *devkit.Toolkit { return toolkit }

	rootCmd.AddCommand(NewConsoleCommand(provider))
	rootCmd.AddCommand(NewExecCommand(provider))
	rootCmd.AddCommand(NewReportCommand(provider))
	rootCmd.AddCommand(NewProxyCommand())
	rootCmd.AddCommand(NewVersionCommand())
}

// needsToolkit is false for commands that run without a toolkit.
func needsToolkit(cmd *cobra.Command) bool {
	return cmd.Annotations["toolkit"] != "none"
}
