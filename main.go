// Package main is the entry point for the ghflow CLI.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/ghflow/cmd"
	"github.com/danielolaszy/ghflow/internal/logging"
)

var version = "dev"

func main() {
	logging.Debug("starting ghflow", "version", version)

	if err := cmd.Execute(); err != nil {
		logging.Debug("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
