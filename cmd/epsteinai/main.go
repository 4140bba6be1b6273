// Package main provides the entry point for the epsteinai CLI.
package main

import (
	"fmt"
	"os"

	"github.com/tarunchinta/epsteinai/cmd/epsteinai/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	root.SilenceUsage = true
	root.SilenceErrors = true

	err := root.Execute()
	code := cmd.ExitCode(err)
	if err != nil && code != 0 {
		fmt.Fprintf(os.Stderr, "epsteinai: %v\n", err)
	}
	os.Exit(code)
}
