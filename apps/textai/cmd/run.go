package cmd

import (
	"context"
	"os"

	"github.com/nkkko/textai/internal/dialog"
	"github.com/nkkko/textai/internal/engine"
	"github.com/nkkko/textai/internal/processor"
	"github.com/nkkko/textai/internal/ui"
	"github.com/spf13/cobra"
)

var serveAPI bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run host and editor together in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess("local", func(ctx context.Context) error {
			prompter := dialog.PtermPrompter{}
			local, err := engine.NewLocal(
				cfg,
				dialog.NewTerminal(prompter),
				processor.NewStub(cfg.ToProcessorConfig()),
				ui.NewTerminalView(prompter),
				os.Stdin,
				serveAPI,
			)
			if err != nil {
				return err
			}
			return local.Start(ctx)
		})
	},
}

func init() {
	runCmd.Flags().BoolVar(&serveAPI, "api", false, "Also serve the control surface so menus can be triggered over HTTP")
	rootCmd.AddCommand(runCmd)
}
