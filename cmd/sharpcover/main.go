// Package main implements the sharpcover CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sharpcover/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "sharpcover",
	Short: "Statement coverage for compiled assemblies",
	Long:  `sharpcover injects coverage probes into compiled assemblies and reports which statements executed.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

// errProbesMissed is returned by check when at least one probe never
// fired. It carries the dedicated exit code 1; every other failure of
// either verb maps to the generic exit code 2.
var errProbesMissed = errors.New("not all probes executed")

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(instrumentCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")
	rootCmd.PersistentFlags().Bool("timings", false, "show timing information")

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errProbesMissed) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "sharpcover:", err)
		os.Exit(2)
	}
}

func useColor(cmd *cobra.Command, f *os.File) bool {
	colorFlag, _ := cmd.Root().PersistentFlags().GetString("color")
	return colorFlag == "on" || (colorFlag == "auto" && isTerminal(f))
}

func beQuiet(cmd *cobra.Command) bool {
	quiet, _ := cmd.Root().PersistentFlags().GetBool("quiet")
	return quiet
}

func showTimings(cmd *cobra.Command) bool {
	timings, _ := cmd.Root().PersistentFlags().GetBool("timings")
	return timings
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
