package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}

	return nil
}

// formatRemaining renders the time left until exp, or "expired".
func formatRemaining(exp, now time.Time) string {
	if !now.Before(exp) {
		return "expired"
	}

	return exp.Sub(now).Truncate(time.Second).String()
}
