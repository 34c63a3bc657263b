package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/component"
	"github.com/jamesainslie/headless/pkg/headless/output"
)

// componentNames lists the accepted component arguments for completion.
var componentNames = []string{"homebrew", "power", "ollama", "colima", component.All}

var verbHelp = map[component.Verb]struct{ short, long string }{
	component.VerbSetup: {
		short: "Install and configure a component",
		long: `Install and configure a component, or every component in order:
homebrew, power, ollama, colima.

Setup is safe to repeat; work that is already done is reported and skipped.`,
	},
	component.VerbEnable: {
		short: "Activate an installed component",
		long:  `Activate a component that was set up earlier: apply the power profile, load the Ollama service, start the Colima VM.`,
	},
	component.VerbDisable: {
		short: "Deactivate a component without removing it",
		long: `Deactivate a component. With "all", components are disabled in reverse
setup order. Homebrew cannot be disabled and is skipped.`,
	},
	component.VerbRemove: {
		short: "Uninstall a component",
		long: `Uninstall a component and delete what headless created for it.

Removal asks twice before doing anything; answering no at either prompt
cancels cleanly.`,
	},
	component.VerbStatus: {
		short: "Show the state of each component",
		long:  `Report whether each component is installed and active, without changing anything.`,
	},
}

func init() {
	for _, verb := range component.Verbs() {
		rootCmd.AddCommand(newVerbCommand(verb))
	}
}

// newVerbCommand builds the command for one verb. The component argument
// defaults to all.
func newVerbCommand(verb component.Verb) *cobra.Command {
	help := verbHelp[verb]
	cmd := &cobra.Command{
		Use:       fmt.Sprintf("%s [%s]", verb, strings.Join(componentNames, "|")),
		Short:     help.short,
		Long:      help.long,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: componentNames,
	}

	if verb == component.VerbStatus {
		cmd.RunE = runStatus
	} else {
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return runVerb(cmd, verb, targetArg(args))
		}
	}
	return cmd
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return component.All
	}
	return strings.ToLower(args[0])
}

// runVerb runs a mutating verb after the platform check.
func runVerb(cmd *cobra.Command, verb component.Verb, target string) error {
	if err := requirePlatform(); err != nil {
		return err
	}

	a, err := newApp(cfg, assumeYes, true)
	if err != nil {
		return err
	}
	defer a.close()

	printVerbose("running %s against %s", verb, target)
	if err := a.dispatcher.Run(cmd.Context(), verb, target); err != nil {
		return err
	}
	printInfo("Done.")
	return nil
}

// runStatus prints the status report in the selected format.
func runStatus(cmd *cobra.Command, args []string) error {
	f, err := output.Get(outputFormat)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, assumeYes, false)
	if err != nil {
		return err
	}
	defer a.close()

	report, err := a.dispatcher.Status(cmd.Context(), targetArg(args))
	if err != nil {
		return err
	}
	report.Hostname, _ = os.Hostname()

	var buf bytes.Buffer
	if err := f.FormatStatus(&buf, report); err != nil {
		return fmt.Errorf("formatting status: %w", err)
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}
