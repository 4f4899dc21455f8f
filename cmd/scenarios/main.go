// Package main provides the entry point for the scenarios CLI.
package main

import (
	"fmt"
	"os"

	"github.com/goliatone/go-scenarios/cmd/scenarios/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
