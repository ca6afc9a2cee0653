package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <dest-path>",
	Short: "Re-extract a tracked copy at its recorded revision",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		return app.Fetch(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}
