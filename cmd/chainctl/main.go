// Command chainctl inspects, converts and stores persisted multicast
// callback chains and runs chain conformance scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/multicast/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chainctl: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
