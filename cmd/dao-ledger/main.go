// DAO ledger server and CLI.
// Stdio for the MCP driver, HTTP for remote clients and the dashboard.
package main

import (
	"fmt"
	"os"

	"github.com/jaakkos/dao-ledger/internal/cli"
)

// Version is set by -ldflags at build time.
var Version = "dev"

func main() {
	cli.Version = Version
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
