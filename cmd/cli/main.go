// SPDX-License-Identifier: Apache-2.0

// Command orchctl is the operator CLI for the workflow orchestrator API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
