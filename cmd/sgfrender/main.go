package main

import (
	"fmt"
	"os"

	"github.com/dmmcquay/sgfrender/internal/cli"
)

var (
	// Version information injected at build time.
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	root := cli.Root(cli.BuildInfo{GitCommit: GitCommit, BuildTime: BuildTime})
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sgfrender: %v\n", err)
		os.Exit(1)
	}
}
