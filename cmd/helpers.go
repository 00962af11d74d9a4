package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/howeyc/gopass"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/term"

	"github.com/tjdeveng/keeptower/internal/keychain"
	"github.com/tjdeveng/keeptower/internal/vault"
)

// promptPassword reads a password from the controlling terminal with
// asterisk masking, falling back to a plain line read when stdin isn't a
// terminal (scripted/piped invocations).
func promptPassword(label string) ([]byte, error) {
	fmt.Fprint(os.Stderr, label)
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		var line string
		if _, err := fmt.Scanln(&line); err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		return []byte(line), nil
	}
	password, err := gopass.GetPasswdMasked()
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

func keychainFor(path, username string) *keychain.KeychainService {
	return keychain.New(path, username)
}

// resolvePassword returns password from the OS keychain if cached there for
// (path, username), prompting and offering to cache it otherwise.
func resolvePassword(path, username string) ([]byte, error) {
	ks := keychainFor(path, username)
	if ks.IsAvailable() {
		if cached, err := ks.Retrieve(); err == nil {
			return []byte(cached), nil
		}
	}
	password, err := promptPassword(fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return nil, err
	}
	if ks.IsAvailable() {
		_ = ks.Store(string(password))
	}
	return password, nil
}

func openSession(path, username string, password []byte) (*vault.Session, error) {
	return vault.OpenV2(path, username, password)
}

func promptUsername(label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	var username string
	if _, err := fmt.Scanln(&username); err != nil {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return username, nil
}

func printSuccess(format string, a ...any) {
	fmt.Fprintln(os.Stdout, color.GreenString(format, a...))
}

func printError(format string, a ...any) {
	fmt.Fprintln(os.Stderr, color.RedString(format, a...))
}

func renderTable(header []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println("(none)")
		return
	}
	t := tablewriter.NewWriter(os.Stdout)
	t.Header(header)
	_ = t.Bulk(rows)
	_ = t.Render()
}
