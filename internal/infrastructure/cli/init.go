package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/worksync/pkg/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .worksync workspace in the project root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}
		repo := storage.NewFilesystemRepository(root)
		if repo.IsInitialized() {
			fmt.Fprintf(cmd.OutOrStdout(), "Workspace already initialized in %s\n", repo.Dir())
			return nil
		}
		if err := repo.Initialize(); err != nil {
			return fmt.Errorf("failed to initialize workspace: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Initialized worksync workspace in %s\n", repo.Dir())
		return nil
	},
}

func init() {
	RootCmd.AddCommand(initCmd)
}
