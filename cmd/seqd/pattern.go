package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-drumseq/drumseq/internal/pattern"
)

var patternCmd = &cobra.Command{
	Use:   "pattern",
	Short: "Pattern-file operations",
}

var patternValidateCmd = &cobra.Command{
	Use:   "validate <file.json>",
	Short: "Validate a pattern JSON file against the data-model invariants",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternValidate,
}

func init() {
	patternCmd.AddCommand(patternValidateCmd)
}

func runPatternValidate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}

	var p pattern.Pattern
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	m := pattern.NewManager()
	if !m.ValidatePattern(&p) {
		return fmt.Errorf("%s fails pattern invariants", args[0])
	}

	fmt.Printf("%s: valid (%d tracks, resolution %d)\n", args[0], len(p.Tracks), p.StepResolution)
	return nil
}
