// Package cmd wires the subcopy engine to its command line surface.
package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	verbose               bool
	version, commit, date string
)

// SetVersionInfo sets version information from ldflags
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

var rootCmd = &cobra.Command{
	Use:   "git-subcopy",
	Short: "Copy files from other git repositories and keep them in sync",
	Long: `git-subcopy copies a file or directory out of another git repository into
this one, records where it came from in a .gitcopies file, and can later
replay your local edits on top of a newer upstream revision using git's own
rebase machinery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initLogging)
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
}

func initLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(versionTemplate())
	return rootCmd.Execute()
}

func versionTemplate() string {
	if commit != "none" && commit != "" {
		return fmt.Sprintf("git-subcopy %s\n  commit: %s\n  built:  %s\n", version, commit, date)
	}
	return fmt.Sprintf("git-subcopy %s\n", version)
}

// ExitError carries a subprocess exit status that the tool's own exit code
// should mirror.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("session exited with status %d", e.Code)
}
