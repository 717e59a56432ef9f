// Command server runs the disaster-ready backend. See internal/cli for the
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/sakif/disaster-ready/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
