// ./main.go
package main

import (
	"github.com/sk3lla/mend/cmd"
)

// main is the entry point for the mend CLI.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
