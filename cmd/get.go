package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jD91mZM2/git-subcopy/internal/subcopy"
)

var getForce bool

var getCmd = &cobra.Command{
	Use:   "get <source-url> <rev> <source-path> <dest-path>",
	Short: "Copy files from a repository without tracking them",
	Long: `Copies files exactly like add but records nothing in ` + subcopy.ManifestName + `.
Useful for one-off extractions.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := subcopy.New(cmd.Context())
		if err != nil {
			return err
		}
		return app.Get(cmd.Context(), args[0], args[1], args[2], args[3], getForce)
	},
}

func init() {
	getCmd.Flags().BoolVarP(&getForce, "force", "f", false,
		"Overwrite an existing destination and create missing parent directories")
	rootCmd.AddCommand(getCmd)
}
