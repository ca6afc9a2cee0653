package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var addForce bool

var addCmd = &cobra.Command{
	Use:   "add <source-url> <rev> <source-path> <dest-path>",
	Short: "Copy files from a repository and record them in " + subcopy.ManifestName,
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		return app.Add(cmd.Context(), args[0], args[1], args[2], args[3], addForce)
	},
}

func init() {
	addCmd.Flags().BoolVarP(&addForce, "force", "f", false,
		"Overwrite an existing destination and create missing parent directories")
	rootCmd.AddCommand(addCmd)
}
