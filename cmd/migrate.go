package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjdeveng/keeptower/internal/vault"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate <v1-password>",
	Short: "Migrate a V1 vault in place to V2 with a single Administrator",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v1Password := []byte(args[0])
		path := currentVaultPath()

		s, err := vault.OpenV1(path, v1Password)
		if err != nil {
			return err
		}
		defer s.Close()

		adminUsername, err := promptUsername("Administrator username for the V2 vault: ")
		if err != nil {
			return err
		}
		adminPassword, err := promptPassword(fmt.Sprintf("Password for %s: ", adminUsername))
		if err != nil {
			return err
		}

		pol := appConfig.ToSecurityPolicy()
		if err := s.MigrateToV2(adminUsername, adminPassword, pol); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		printSuccess("migrated %s to V2 (original V1 bytes preserved in %s.v1.backup)", path, path)
		return nil
	},
}
