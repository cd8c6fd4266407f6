// Package main provides the entry point for the settingsearch CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/settingsearch/cmd/settingsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
