// Package main provides the entry point for the patchrag CLI.
package main

import (
	"os"

	"github.com/patchrag/patchrag/cmd/patchrag/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
