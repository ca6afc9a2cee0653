package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var rebaseCmd = &cobra.Command{
	Use:   "rebase <dest-path> <new-rev>",
	Short: "Replay local changes to a tracked copy onto a new upstream revision",
	Long: `Stages the tracked upstream snapshot, commits your current content on top,
and starts an interactive git rebase onto the new revision. Conflicts are
resolved with git's own continue/abort primitives. Only a completed rebase
updates the destination and the recorded revision; aborting leaves
everything untouched.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		return app.Rebase(cmd.Context(), args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(rebaseCmd)
}
