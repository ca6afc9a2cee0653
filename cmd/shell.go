package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var shellCmd = &cobra.Command{
	Use:   "shell <dest-path>",
	Short: "Open a shell in a scratch repository showing how your copy diverges from upstream",
	Long: `Stages a checkout of the tracked upstream snapshot, overlays your current
content as uncommitted changes, and drops you into a shell there. Run git
diff, git status, or anything else; when you exit, the working tree is
copied back over the destination.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		code, err := app.Shell(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if code != 0 {
			return &ExitError{Code: code}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
