// Package main provides the durable CLI for running, replaying and
// inspecting replay-driven orchestrations.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/durable/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
