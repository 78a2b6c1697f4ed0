package main

import (
	"fmt"
	"os"

	"github.com/maksimkurb/netstate/src/internal/commands"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

func main() {
	root := commands.NewRootCommand(commands.NewAppContext(), fmt.Sprintf("%s (commit %s, built %s)", version, commit, date))
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(commands.ExitCode(err))
	}
}
