package main

import (
	"bufio"
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/cmd/headless/tui"
	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/output"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
)

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Open the interactive menu",
	Long: `Choose a component and a verb from a menu. The chosen verb runs in the
terminal as it would from the command line; press Enter afterwards to
return to the menu. Press q or Esc to leave.`,
	Args: cobra.NoArgs,
	RunE: runMenu,
}

func init() {
	rootCmd.AddCommand(menuCmd)
}

// runMenu loops between the menu and the chosen verb until the operator quits.
func runMenu(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	in := bufio.NewReader(os.Stdin)

	for {
		sel, ok, err := chooseFromMenu(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		err = runSelection(cmd, sel)
		switch {
		case errors.Is(err, prompt.ErrCancelled):
			printInfo("Cancelled.")
		case err != nil:
			printError("%v", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		printInfo("\nPress Enter to return to the menu...")
		if _, err := in.ReadString('\n'); err != nil {
			return nil
		}
	}
}

// chooseFromMenu shows the menu with live component states.
func chooseFromMenu(ctx context.Context) (tui.Selection, bool, error) {
	a, err := newApp(cfg, assumeYes, false)
	if err != nil {
		return tui.Selection{}, false, err
	}
	defer a.close()

	return tui.Run(tui.Options{
		Context:    ctx,
		Components: a.dispatcher.Names(),
		Status: func(ctx context.Context) (*output.Report, error) {
			return a.dispatcher.Status(ctx, component.All)
		},
	})
}

// runSelection runs the chosen verb exactly as the matching command would.
func runSelection(cmd *cobra.Command, sel tui.Selection) error {
	if sel.Verb == component.VerbStatus {
		return runStatus(cmd, []string{sel.Component})
	}
	return runVerb(cmd, sel.Verb, sel.Component)
}
