package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open <username>",
	Short: "Authenticate against the vault and cache the password in the OS keychain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		path := currentVaultPath()

		password, err := promptPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return err
		}
		s, err := openSession(path, username, password)
		if err != nil {
			return err
		}
		defer s.Close()

		ks := keychainFor(path, username)
		if ks.IsAvailable() {
			if err := ks.Store(string(password)); err != nil {
				printError("could not cache password in keychain: %v", err)
			}
		}
		printSuccess("authenticated as %s", username)
		return nil
	},
}
