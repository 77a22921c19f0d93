/*
Package main provides the CLI entry point for notifyevents.
*/
package main

import (
	"os"

	"github.com/oarkflow/notifyevents/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
