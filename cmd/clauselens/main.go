// Command clauselens profiles legal documents from the command line, either
// locally or against a running API server.
package main

import (
	"os"

	"github.com/turtacn/clauselens/internal/interfaces/cli"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := cli.Execute(cli.BuildInfo{Version: version, Commit: commit, BuildDate: buildDate}); err != nil {
		os.Exit(1)
	}
}
