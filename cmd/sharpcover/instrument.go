package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sharpcover/internal/cil"
	"sharpcover/internal/config"
	"sharpcover/internal/cover"
	"sharpcover/internal/observ"
)

var instrumentCmd = &cobra.Command{
	Use:   "instrument [flags] config.toml",
	Short: "Inject coverage probes into the configured assemblies",
	Long: `Instrument rewrites every assembly named in the configuration document,
inserting a hit-recording probe before each eligible instruction, and
writes the probe manifest for a later check.`,
	Args: cobra.ExactArgs(1),
	RunE: runInstrument,
}

func init() {
	instrumentCmd.Flags().Bool("verbose", false, "log per-assembly and per-method progress")
}

func runInstrument(cmd *cobra.Command, args []string) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}

	timer := observ.NewTimer()

	phase := timer.Begin("load config")
	rules, err := config.Load(args[0])
	timer.End(phase, args[0])
	if err != nil {
		return err
	}

	log := zap.NewNop()
	if verbose {
		log, err = zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer log.Sync()
	}

	phase = timer.Begin("instrument")
	session := cover.NewSession(rules, cil.DiskLoader{}, log)
	probes, err := session.Run()
	timer.End(phase, fmt.Sprintf("%d probes", probes))
	if err != nil {
		return err
	}

	if !beQuiet(cmd) {
		count := color.New(color.FgGreen, color.Bold)
		if !useColor(cmd, os.Stdout) {
			count.DisableColor()
		}
		fmt.Printf("instrumented %d assemblies, %s probes\n",
			len(rules.Assemblies), count.Sprint(probes))
	}
	if showTimings(cmd) {
		fmt.Print(timer.Summary())
	}
	return nil
}
