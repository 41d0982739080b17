// Command sage validates tabular data deliveries against YAML rule
// specifications.
package main

import (
	"fmt"
	"os"

	"sage/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
