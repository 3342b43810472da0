// Adapted from the teacher's cmd/miditest/main.go listPorts: a quick
// MIDI I/O port inventory, folded into the main CLI instead of living in
// a standalone debug binary.
package main

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available MIDI input and output ports",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Inputs:")
		for i, p := range gomidi.GetInPorts() {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("Outputs:")
		for i, p := range gomidi.GetOutPorts() {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		return nil
	},
}
