package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked copies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		copies, err := app.List()
		if err != nil {
			return err
		}
		for _, c := range copies {
			fmt.Fprintf(cmd.OutOrStdout(), "%s = Cloned from %s:%s, revision %s\n",
				c.DestPath, c.SourceURL, c.SourcePath, c.Revision)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
