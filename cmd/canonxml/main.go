package main

import (
	"fmt"
	"os"

	"github.com/roach88/canonxml/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "canonxml:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
