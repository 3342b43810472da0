// Command seqd is the daemon/CLI entry point for the drum sequencer
// core: it wires the Pattern Manager, Sample Registry, Audio Scheduler,
// and Sequencer Engine together behind a MIDI sample player and a
// bubbletea status monitor.
//
// Grounded on the teacher's root main.go (load config, connect device,
// start tea.Program) rearranged behind github.com/spf13/cobra the way
// the rest of the retrieval pack's CLI tools structure multi-subcommand
// entry points.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
