// Package main provides the meterwatch daemon and CLI: a single-phase
// energy meter poller with a key-protected web dashboard.
package main

import (
	"fmt"
	"os"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
