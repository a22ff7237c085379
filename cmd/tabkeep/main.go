// Package main provides the tabkeep command line client for the profile
// and snapshot registry.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
