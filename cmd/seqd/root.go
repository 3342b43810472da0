package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seqd",
	Short: "Step-based drum sequencer core daemon",
	Long: "seqd wires the Pattern Manager, Sample Registry, Audio Scheduler, " +
		"and Sequencer Engine into a runnable sequencer with a MIDI output.",
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(patternCmd)
	rootCmd.AddCommand(benchCmd)
}
