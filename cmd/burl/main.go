// Command burl is a file-based, Git-backed workflow orchestrator for
// agentic coding pipelines.
package main

import (
	"os"

	"github.com/burl-dev/burl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
