// Package keychain caches a vault user's password in the OS credential
// store so the CLI companion can skip the password prompt on repeat runs.
// It is a convenience for cmd/ only; the vault facade never reads it.
package keychain

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/zalando/go-keyring"
)

// ServiceName is the identifier used for keychain storage.
const ServiceName = "keeptower"

var (
	// ErrKeychainUnavailable indicates the system keychain is not available.
	ErrKeychainUnavailable = errors.New("system keychain is not available")
	// ErrPasswordNotFound indicates no password is stored in the keychain.
	ErrPasswordNotFound = errors.New("password not found in keychain")
)

// KeychainService caches one user's vault password under the OS credential
// store, keyed by (vaultID, username) so distinct users of the same vault
// never collide and the same username across distinct vaults never collides.
type KeychainService struct {
	available bool
	vaultID   string
	username  string
}

// New creates a KeychainService for a specific vault and username. vaultID
// should identify the vault file (its path or basename); username is the
// key-slot owner whose password is being cached.
func New(vaultID, username string) *KeychainService {
	return &KeychainService{
		vaultID:  sanitize(vaultID),
		username: sanitize(username),
	}
}

// sanitize normalizes a keychain account-name component: keeps alphanumeric,
// dash, underscore; replaces everything else with underscore.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func (ks *KeychainService) accountName() string {
	return fmt.Sprintf("%s:%s", ks.vaultID, ks.username)
}

// Ping tests whether the system keychain is reachable.
func (ks *KeychainService) Ping() error {
	if ks.available {
		return nil
	}
	const probeAccount = "keeptower-availability-probe"
	if err := keyring.Set(ServiceName, probeAccount, "probe"); err != nil {
		return fmt.Errorf("%w: %v", ErrKeychainUnavailable, err)
	}
	_ = keyring.Delete(ServiceName, probeAccount)
	ks.available = true
	return nil
}

// IsAvailable reports whether the system keychain is usable, probing lazily.
func (ks *KeychainService) IsAvailable() bool {
	if !ks.available {
		_ = ks.Ping()
	}
	return ks.available
}

// Store saves password under this (vaultID, username) pair.
func (ks *KeychainService) Store(password string) error {
	if err := keyring.Set(ServiceName, ks.accountName(), password); err != nil {
		return fmt.Errorf("failed to store password in keychain: %w", err)
	}
	return nil
}

// Retrieve returns the cached password for this (vaultID, username) pair.
func (ks *KeychainService) Retrieve() (string, error) {
	password, err := keyring.Get(ServiceName, ks.accountName())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrPasswordNotFound
		}
		return "", fmt.Errorf("failed to retrieve password from keychain: %w", err)
	}
	return password, nil
}

// Delete removes the cached password, if any.
func (ks *KeychainService) Delete() error {
	err := keyring.Delete(ServiceName, ks.accountName())
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete password from keychain: %w", err)
	}
	return nil
}
