// Package cmd implements vaultctl, the thin companion CLI that exercises
// the vault facade end to end: no clipboard, no TUI, no export formats.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tjdeveng/keeptower/internal/config"
	"github.com/tjdeveng/keeptower/internal/obs"
)

var (
	cfgFile   string
	verbose   bool
	vaultPath string

	appConfig *config.Config

	rootCmd = &cobra.Command{
		Use:   "vaultctl",
		Short: "Encrypted, multi-user, role-based credential vault",
		Long: `vaultctl is a thin command-line companion over an on-disk encrypted
credential vault. It exists to exercise the vault facade end to end:
create and open vaults, manage users and their roles, and store and
retrieve accounts.`,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&vaultPath, "vault", "", "vault file path (overrides config)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(removeUserCmd)
	rootCmd.AddCommand(changePasswordCmd)
	rootCmd.AddCommand(listAccountsCmd)
	rootCmd.AddCommand(addAccountCmd)
	rootCmd.AddCommand(deleteAccountCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(saveCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var result *config.ValidationResult
	if cfgFile != "" {
		cfg, result = config.LoadFromPath(cfgFile)
	} else {
		cfg, result = config.Load()
	}
	for _, w := range result.Warnings {
		obs.Warn("config warning", "detail", w)
	}
	for _, e := range result.Errors {
		obs.Warn("config error, falling back to defaults", "detail", e)
	}

	if verbose {
		obs.SetLevel("debug")
	} else {
		obs.SetLevel(cfg.LogLevel)
	}

	if vaultPath != "" {
		cfg.VaultPath = vaultPath
	}
	appConfig = cfg
	return nil
}

func currentVaultPath() string {
	if vaultPath != "" {
		return vaultPath
	}
	return appConfig.VaultPath
}
