// Command oauth2ctl drives OAuth 2.0 flows from the command line and can run
// a development authorization server.
package main

import (
	"fmt"
	"os"
)

var version = "dev" // injected with -ldflags at build time

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
