package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tjdeveng/keeptower/internal/record"
	"github.com/tjdeveng/keeptower/internal/vault"
)

var listTagFilter string

var listAccountsCmd = &cobra.Command{
	Use:   "list-accounts <username>",
	Short: "List the accounts visible to username",
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

		var filter *vault.AccountFilter
		if listTagFilter != "" {
			filter = &vault.AccountFilter{Tag: listTagFilter}
		}
		accounts, err := s.ListAccounts(filter)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(accounts))
		for _, a := range accounts {
			rows = append(rows, []string{
				a.ID.String(), a.Name, a.Username, strings.Join(a.Tags, ","),
			})
		}
		renderTable([]string{"ID", "Name", "Username", "Tags"}, rows)
		return nil
	},
}

var (
	addAccountUsername string
	addAccountURL       string
	addAccountNotes     string
	addAccountTags      string
	addAccountFavorite  bool
)

var addAccountCmd = &cobra.Command{
	Use:   "add-account <caller-username> <name>",
	Short: "Create or update an account record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, name := args[0], args[1]
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

		id, err := record.NewID()
		if err != nil {
			return err
		}
		var tags []string
		if addAccountTags != "" {
			tags = strings.Split(addAccountTags, ",")
		}
		rec := vault.AccountRecord{
			ID:       id,
			Name:     name,
			Username: addAccountUsername,
			URL:      addAccountURL,
			Notes:    addAccountNotes,
			Tags:     tags,
			Favorite: addAccountFavorite,
		}
		if err := s.UpsertAccount(rec); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		printSuccess("added account %s (id %s)", name, id.String())
		return nil
	},
}

var deleteAccountCmd = &cobra.Command{
	Use:   "delete-account <caller-username> <id>",
	Short: "Delete an account record by ID",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		caller, idStr := args[0], args[1]
		path := currentVaultPath()

		id, err := record.ParseID(idStr)
		if err != nil {
			return err
		}
		password, err := resolvePassword(path, caller)
		if err != nil {
			return err
		}
		s, err := openSession(path, caller, password)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.DeleteAccount(id); err != nil {
			return err
		}
		if err := s.Save(); err != nil {
			return err
		}
		printSuccess("deleted account %s", idStr)
		return nil
	},
}

func init() {
	listAccountsCmd.Flags().StringVar(&listTagFilter, "tag", "", "only list accounts carrying this tag")

	addAccountCmd.Flags().StringVar(&addAccountUsername, "username", "", "account username")
	addAccountCmd.Flags().StringVar(&addAccountURL, "url", "", "account URL")
	addAccountCmd.Flags().StringVar(&addAccountNotes, "notes", "", "account notes")
	addAccountCmd.Flags().StringVar(&addAccountTags, "tags", "", "comma-separated tags")
	addAccountCmd.Flags().BoolVar(&addAccountFavorite, "favorite", false, "mark as favorite")
}

