package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjdeveng/keeptower/internal/vault"
)

var initCmd = &cobra.Command{
	Use:   "init <admin-username>",
	Short: "Create a new V2 vault with a single Administrator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := args[0]
		password, err := promptPassword(fmt.Sprintf("New password for %s: ", username))
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if string(password) != string(confirm) {
			return fmt.Errorf("passwords do not match")
		}

		pol := appConfig.ToSecurityPolicy()
		if err := vault.CreateV2(currentVaultPath(), username, password, pol); err != nil {
			return err
		}
		printSuccess("vault created at %s", currentVaultPath())
		return nil
	},
}
