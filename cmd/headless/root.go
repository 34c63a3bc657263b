package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/config"
	"github.com/jamesainslie/headless/pkg/headless/prompt"
)

var (
	cfgFile      string
	verbose      bool
	assumeYes    bool
	outputFormat string

	// cfg is loaded once per invocation by initialize.
	cfg *config.Config

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	rootCmd = &cobra.Command{
		Use:   "headless",
		Short: "Prepare a Mac Mini for unattended operation",
		Long: `Headless configures a Mac Mini to run without a display: Homebrew,
power settings that keep the machine awake and reachable, an Ollama
inference server, and a Colima VM for Docker sized so both fit in memory.

Run without arguments on a terminal to open the interactive menu.

Examples:
  headless setup                # Set up every component in order
  headless setup colima         # Size and start the Colima VM
  headless status -o json       # Machine-readable status
  headless disable power        # Restore the previous power settings
  headless advise --ram 32      # Recommendation for a 32 GB machine
  headless history              # What headless changed, newest first`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: initialize,
		RunE:              runRoot,
	}
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/headless/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug output on stderr")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to every prompt")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "pretty", "output format for status, advise and history (pretty, plain, json, yaml)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// exitCode reports err and maps it to the process exit status. An operator
// declining a prompt is a clean exit.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, prompt.ErrCancelled):
		printInfo("Cancelled.")
		return 0
	case errors.Is(err, context.Canceled):
		printError("interrupted")
		return 1
	default:
		printError("%v", err)
		return 1
	}
}

// runRoot opens the menu on a terminal and prints help otherwise.
func runRoot(cmd *cobra.Command, args []string) error {
	if !prompt.IsTTY() {
		return cmd.Help()
	}
	return runMenu(cmd, args)
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return verbose
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() {
		fmt.Fprintf(stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stdout.
func printInfo(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format+"\n", args...)
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
}
