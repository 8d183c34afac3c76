// Package cmd provides the textai command-line interface. Each process role
// (host, content, or both paired in one process) is a subcommand; the menu
// commands drive a running host over its control surface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nkkko/textai/internal/config"
	"github.com/nkkko/textai/internal/logging"
	"github.com/nkkko/textai/internal/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configFile string
	serverAddr string
	logLevel   string

	// cfg is loaded once flags are parsed
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "textai",
	Short:         "Text editor with AI actions, split into a privileged host and a content editor",
	Long:          `textai runs a privileged host process (menus, file dialogs, disk access) and a content process (the editor) joined by a message bridge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.LoadConfig(configFile, serverAddr, logLevel)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI application
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "", "Host control surface address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// runProcess sets up logging and tracing for the named process and runs fn
// with a context cancelled on SIGINT or SIGTERM
func runProcess(process string, fn func(ctx context.Context) error) error {
	if err := logging.Setup(cfg.ToLoggingConfig(process)); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Setup(ctx, cfg.ToTelemetryConfig(process))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to set up telemetry, continuing without it")
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("Failed to shut down telemetry")
			}
		}()
	}

	return fn(ctx)
}
