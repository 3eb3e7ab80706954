// Command colinmig rebuilds COLIN corporation histories as LEAR filings.
package main

import (
	"io"
	"os"

	"github.com/bcgov/colin-migrate/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns its exit code.
func run(args []string, stdout, stderr io.Writer) int {
	return cli.Execute(args, stdout, stderr)
}
