// Command spgt compiles lifted planning domains into grounded fact programs.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"spgt/internal/config"
	"spgt/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// Set up by PersistentPreRunE
	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "spgt",
	Short: "spgt - grounding compiler for non-deterministic planning domains",
	Long: `spgt turns a lifted, typed planning domain and a problem instance into a
grounded fact program: multi-valued state variables, their initial values,
the goal, and every instantiated action with its effects.

The program can be handed to a solver as is, or loaded into a Mangle
kernel for inspection.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
	},
}

// setup loads configuration and builds the loggers.
func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	opts := c.Logging.Options()
	logger, err = logging.Build(opts)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logging.Use(logger, opts)
	if err := logging.InitAudit(c.Logging.AuditFile); err != nil {
		return err
	}

	cfg = c
	logging.BootDebug("config loaded from %s", configPath)
	return nil
}

// currentConfig returns the loaded configuration, or the defaults when a
// handler runs without the root command.
func currentConfig() *config.Config {
	if cfg == nil {
		return config.DefaultConfig()
	}
	return cfg
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "spgt.yaml", "Config file")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(formulaCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}
