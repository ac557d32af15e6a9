package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ekaya-inc/herbtrace/pkg/cli"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if err := cli.NewRootCommand(Version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
