package cmd

import (
	"context"

	"github.com/nkkko/textai/internal/dialog"
	"github.com/nkkko/textai/internal/engine"
	"github.com/spf13/cobra"
)

var hostFramework string

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Run the privileged host process",
	Long:  `Serves the bridge and the control surface, shows file dialogs in this terminal and reads and writes files for the connected editor.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if hostFramework != "" {
			cfg.Server.Framework = hostFramework
			if err := cfg.Validate(); err != nil {
				return err
			}
		}

		return runProcess("host", func(ctx context.Context) error {
			h, err := engine.NewHost(cfg, dialog.NewTerminal(dialog.PtermPrompter{}), nil)
			if err != nil {
				return err
			}
			return h.Start(ctx)
		})
	},
}

func init() {
	hostCmd.Flags().StringVar(&hostFramework, "framework", "", "HTTP framework: chi or fiber (overrides config)")
	rootCmd.AddCommand(hostCmd)
}
