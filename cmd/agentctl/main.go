// Command agentctl runs coordinator workflows from the command line.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "agentctl: %s\n", err)
		os.Exit(1)
	}
}
