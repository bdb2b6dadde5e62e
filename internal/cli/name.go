// Package cli implements the burl command-line surface: context
// resolution, command registration, and output formatting shared across
// subcommands.
package cli

import (
	"os"
	"sync"
)

var (
	name     string
	nameOnce sync.Once
)

// Name returns the burl CLI command name. Defaults to "burl", but can be
// overridden with the BURL_COMMAND env var so a wrapper script can rename
// the binary without every help string going stale.
func Name() string {
	nameOnce.Do(func() {
		name = os.Getenv("BURL_COMMAND")
		if name == "" {
			name = "burl"
		}
	})
	return name
}
