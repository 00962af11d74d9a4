package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjdeveng/keeptower/internal/policy"
)

var addUserRole string

var addUserCmd = &cobra.Command{
	Use:   "add-user <caller-username> <new-username>",
	Short: "Add a new key slot (caller must be an active Administrator)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, newUser := args[0], args[1]
		path := currentVaultPath()

		password, err := resolvePassword(path, caller)
		if err != nil {
			return err
		}
		s, err := openSession(path, caller, password)
		if err != nil {
			return err
		}
		defer s.Close()

		var role policy.Role
		switch addUserRole {
		case "administrator":
			role = policy.RoleAdministrator
		case "standard", "":
			role = policy.RoleStandard
		default:
			return fmt.Errorf("unknown role %q (want administrator|standard)", addUserRole)
		}

		tempPassword, err := promptPassword(fmt.Sprintf("Temporary password for %s: ", newUser))
		if err != nil {
			return err
		}
		if err := s.AddUser(newUser, tempPassword, role); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		printSuccess("added user %s (%s, must change password on first login)", newUser, role)
		return nil
	},
}

var removeUserCmd = &cobra.Command{
	Use:   "remove-user <caller-username> <target-username>",
	Short: "Deactivate a key slot (caller must be an active Administrator)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, target := args[0], args[1]
		path := currentVaultPath()

		password, err := resolvePassword(path, caller)
		if err != nil {
			return err
		}
		s, err := openSession(path, caller, password)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.RemoveUser(target); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		_ = keychainFor(path, target).Delete()
		printSuccess("removed user %s", target)
		return nil
	},
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password <caller-username> <target-username>",
	Short: "Change a user's password (self, or Administrator resetting another user)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, target := args[0], args[1]
		path := currentVaultPath()

		callerPassword, err := resolvePassword(path, caller)
		if err != nil {
			return err
		}
		s, err := openSession(path, caller, callerPassword)
		if err != nil {
			return err
		}
		defer s.Close()

		var oldPassword []byte
		if caller == target {
			oldPassword = callerPassword
		}
		newPassword, err := promptPassword(fmt.Sprintf("New password for %s: ", target))
		if err != nil {
			return err
		}
		if err := s.ChangePassword(target, oldPassword, newPassword); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		_ = keychainFor(path, target).Delete()
		printSuccess("password changed for %s", target)
		return nil
	},
}

func init() {
	addUserCmd.Flags().StringVar(&addUserRole, "role", "standard", "role for the new user: administrator|standard")
}
