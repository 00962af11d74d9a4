package cmd

import (
	"github.com/spf13/cobra"
)

var saveCmd = &cobra.Command{
	Use:   "save <username>",
	Short: "Open the vault and immediately re-save it (round-trip check)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		path := currentVaultPath()

		password, err := resolvePassword(path, username)
		if err != nil {
			return err
		}
		s, err := openSession(path, username, password)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.Save(); err != nil {
			return err
		}
		printSuccess("saved %s", path)
		return nil
	},
}
