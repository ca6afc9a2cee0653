package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jD91mZM2/git-subcopy/cmd"
)

// Version information set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, date)

	if err := cmd.Execute(); err != nil {
		var exit *cmd.ExitError
		if errors.As(err, &exit) {
			// Mirror the interactive session's exit status.
			os.Exit(exit.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
