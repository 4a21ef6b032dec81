// Package main is the entry point for the prospector CLI.
package main

import (
	"os"

	"github.com/jmylchreest/prospector/cmd/prospector/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
