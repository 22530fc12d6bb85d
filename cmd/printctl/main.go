// Command printctl dispatches print runs and inspects the print subsystem
// from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/erp/printdispatch/cmd/printctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
