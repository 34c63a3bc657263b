package main

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jamesainslie/headless/pkg/headless/logtail"
)

var (
	logsFollow bool
	logsLines  int
)

var logsCmd = &cobra.Command{
	Use:   "logs <ollama|colima>",
	Short: "Show a service's logs",
	Long: `Print the end of the stdout and stderr logs written by a component's
launch agent. With --follow, keep printing lines as they are appended
until interrupted.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"ollama", "colima"},
	RunE:      runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "stream appended lines")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show from each log")
	rootCmd.AddCommand(logsCmd)
}

// runLogs prints, then optionally follows, one component's logs.
func runLogs(cmd *cobra.Command, args []string) error {
	a, err := newApp(cfg, assumeYes, false)
	if err != nil {
		return err
	}
	defer a.close()

	sources := a.logSources()
	src, ok := sources[strings.ToLower(args[0])]
	if !ok {
		return fmt.Errorf("no logs for %q (choose from %v)", args[0], slices.Sorted(maps.Keys(sources)))
	}

	paths := src.LogPaths()
	if err := writeTail(stdout, paths, logsLines); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	printVerbose("following %v", paths)
	return logtail.Follow(cmd.Context(), stdout, paths...)
}

// writeTail prints the last n lines of each path under a tail(1) style header.
func writeTail(w io.Writer, paths []string, n int) error {
	for i, path := range paths {
		lines, err := logtail.Tail(path, n)
		if err != nil {
			return err
		}
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "==> %s <==\n", path)
		if len(lines) == 0 {
			fmt.Fprintln(w, "(empty)")
			continue
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}
