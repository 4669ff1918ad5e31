package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"sharpcover/internal/observ"
	"sharpcover/internal/report"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile recorded hits against the probe manifest",
	Long: `Check unions the hit outputs of every instrumented run in the working
directory, classifies each manifest probe as hit or missed, writes the
results and XML report, and exits non-zero if anything was missed.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	timer := observ.NewTimer()
	phase := timer.Begin("check")
	res, err := report.Check(report.Options{})
	timer.End(phase, "")
	if err != nil {
		return err
	}

	if !beQuiet(cmd) {
		pct := color.New(color.FgRed, color.Bold)
		if res.Complete() {
			pct = color.New(color.FgGreen, color.Bold)
		}
		if !useColor(cmd, os.Stdout) {
			pct.DisableColor()
		}
		fmt.Printf("coverage: %s (%d/%d probes, %d missed)\n",
			pct.Sprintf("%.2f%%", res.Coverage), res.Hits, res.Total, res.Misses)
		fmt.Printf("results written to %s, report to %s\n",
			report.DefaultResultsFile, report.DefaultXMLFile)
	}
	if showTimings(cmd) {
		fmt.Print(timer.Summary())
	}

	if !res.Complete() {
		return fmt.Errorf("%w: %d of %d probes missed", errProbesMissed, res.Misses, res.Total)
	}
	return nil
}
