package cmd

import (
	"context"
	"time"

	"github.com/nkkko/textai/pkg/client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "List the menu of a running host",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		items, err := newClient().Menu(ctx)
		if err != nil {
			return err
		}

		data := pterm.TableData{{"ID", "Menu", "Label", "Accelerator"}}
		for _, item := range items {
			data = append(data, []string{item.ID, item.Menu, item.Label, item.Accelerator})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

var triggerCmd = &cobra.Command{
	Use:   "trigger <item-id>",
	Short: "Run a menu item on a running host, as if it were clicked",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := newClient().Trigger(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("Triggered %s", args[0])
		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key <accelerator>",
	Short: "Press a keyboard shortcut on a running host (e.g. CmdOrCtrl+S)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := newClient().TriggerAccelerator(ctx, args[0]); err != nil {
			return err
		}
		pterm.Success.Printfln("Pressed %s", args[0])
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent [path]",
	Short: "List recent documents, or re-open one in the window",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		c := newClient()
		if len(args) == 1 {
			if err := c.OpenRecent(ctx, args[0]); err != nil {
				return err
			}
			pterm.Success.Printfln("Opened %s", args[0])
			return nil
		}

		docs, err := c.Recent(ctx)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			pterm.Info.Println("No recent documents")
			return nil
		}
		for i, doc := range docs {
			pterm.Printfln("%2d. %s", i+1, doc)
		}
		return nil
	},
}

func newClient() *client.Client {
	url := cfg.Bridge.HostURL
	if hostURL != "" {
		url = hostURL
	}
	return client.New(url)
}

func init() {
	for _, c := range []*cobra.Command{menuCmd, triggerCmd, keyCmd, recentCmd} {
		c.Flags().StringVar(&hostURL, "host-url", "", "Base URL of the host (overrides config)")
		rootCmd.AddCommand(c)
	}
}
