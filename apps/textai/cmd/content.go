package cmd

import (
	"context"
	"os"

	"github.com/nkkko/textai/internal/engine"
	"github.com/nkkko/textai/internal/processor"
	"github.com/nkkko/textai/internal/ui"
	"github.com/spf13/cobra"
)

var hostURL string

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Run the editor and connect it to a host",
	Long:  `Runs the editor in this terminal. Without a reachable host the editor still works and saves files to the download directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if hostURL != "" {
			cfg.Bridge.HostURL = hostURL
		}

		return runProcess("content", func(ctx context.Context) error {
			c := engine.NewContent(cfg, processor.NewStub(cfg.ToProcessorConfig()), ui.NewTerminalView(nil), os.Stdin)
			return c.Start(ctx)
		})
	},
}

func init() {
	contentCmd.Flags().StringVar(&hostURL, "host-url", "", "Base URL of the host (overrides config)")
	rootCmd.AddCommand(contentCmd)
}
