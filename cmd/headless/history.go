package main

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/config"
	"github.com/jamesainslie/headless/pkg/headless/history"
	"github.com/jamesainslie/headless/pkg/headless/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show what headless changed on this machine",
	Long: `List journaled runs of setup, enable, disable and remove, newest first.

Each entry records the verb, the component, how the run ended and how long
it took. Use 'headless history show <id>' for one entry; an unambiguous ID
prefix is enough.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a history entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history entries",
	Long:  `Remove history entries older than history.retention_days.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show (0 for all)")
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory opens the journal named by the configuration.
func getHistory() (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, fmt.Errorf("history is disabled (history.enabled: false)")
	}
	return openHistory(cfg)
}

// runHistory lists recent runs.
func runHistory(cmd *cobra.Command, args []string) error {
	f, err := output.Get(outputFormat)
	if err != nil {
		return err
	}

	store, err := getHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 && outputFormat == "pretty" {
		printInfo("No history entries found.")
		printInfo("Run 'headless setup' to configure this machine.")
		return nil
	}

	var buf bytes.Buffer
	if err := f.FormatHistory(&buf, entries); err != nil {
		return fmt.Errorf("formatting history: %w", err)
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

// runHistoryShow displays one entry.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := getHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	entry, err := store.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	printEntry(entry)
	return nil
}

func printEntry(entry history.Entry) {
	printInfo("\nRun Details")
	printInfo(strings.Repeat("=", 60))
	printInfo("ID:         %s", entry.ID)
	printInfo("Timestamp:  %s", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	printInfo("Verb:       %s", entry.Verb)
	printInfo("Component:  %s", entry.Component)
	printInfo("Outcome:    %s", entry.Outcome)
	printInfo("Duration:   %s", entry.Duration.Round(time.Millisecond))
	if entry.Error != "" {
		printInfo("Error:      %s", entry.Error)
	}

	if len(entry.Details) > 0 {
		printInfo("\nDetails:")
		printInfo(strings.Repeat("-", 60))
		for _, k := range slices.Sorted(maps.Keys(entry.Details)) {
			printInfo("%-12s  %s", k, entry.Details[k])
		}
	}
}

// runHistoryClean removes entries past the retention period.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	store, err := getHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := store.Clean(time.Now().AddDate(0, 0, -retentionDays))
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}
