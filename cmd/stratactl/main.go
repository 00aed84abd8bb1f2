// Command stratactl is the operations CLI for a Strata memory store.
package main

import (
	"os"

	"github.com/strataml/strata/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
