// Command boardsync reconciles a GitHub project board with repository
// activity according to a rule file.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/boardsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
