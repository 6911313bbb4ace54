// Command rad is the recon automation drone: scan a target with nmap, watch
// the output file for completion, and dispatch feroxbuster content discovery
// against every web service the scan found.
package main

import (
	"github.com/clivendon/RAD/cmd/cli"
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildTime)
	cli.Execute()
}
