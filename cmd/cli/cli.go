package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Execute runs the CLI with all commands
func Execute() {
	rootCmd.SetVersionTemplate("devkit version {{.Version}}\n")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// printResult writes a command result: strings as-is, string slices one per
// line, anything else as indented JSON.
func printResult(w io.Writer, v any) error {
	switch r := v.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, r)
		return err
	case []string:
		for _, line := range r {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	default:
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
}
