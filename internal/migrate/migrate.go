// Package migrate implements the one-shot V1 → V2 vault conversion
// (component C9): byte-for-byte V1 backup, fresh-DEK re-encryption under a
// freshly constructed single-Administrator V2 header, and an atomic write
// that leaves the V1 file and its backup untouched on any failure before
// the rename (§4.9).
package migrate

import (
	"fmt"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/obs"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/record"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
	"github.com/tjdeveng/keeptower/internal/vaultio"
)

// V1Backup suffixes the byte-for-byte backup migration takes before
// touching the live file (§6.3).
const V1Backup = ".v1.backup"

// Options configures a V1→V2 migration.
type Options struct {
	AdminUsername string
	AdminPassword []byte
	Policy        policy.SecurityPolicy
	EnableFEC     bool
	ParityShards  int
}

// Result reports what a successful migration produced.
type Result struct {
	Doc record.Document
	DEK []byte
}

// Run migrates the V1 vault at path, currently open under v1Password, to a
// full V2 file with one Administrator slot for opts.AdminUsername. On any
// failure before the atomic rename completes, the live V1 file and its
// backup are left untouched and the error satisfies errors.As for
// *vaulterr.MigrationFailedError (preconditions) or is returned directly
// (I/O and format failures).
func Run(fs vaultio.FileSystem, p crypto.Provider, path string, v1Password []byte, opts Options) (Result, error) {
	if len(opts.AdminUsername) < 3 || len(opts.AdminUsername) > 32 {
		return Result{}, &vaulterr.MigrationFailedError{Reason: "admin username must be 3..32 bytes"}
	}
	if err := (&opts.Policy).Validate(); err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("invalid policy: %v", err)}
	}

	plaintext, err := vaultio.ReadV1(fs, p, path, v1Password)
	if err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("open v1: %v", err)}
	}
	doc, err := record.UnmarshalDocument(plaintext)
	if err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("decode v1 record blob: %v", err)}
	}

	backupPath := path + V1Backup
	if err := copyByteForByte(fs, path, backupPath); err != nil {
		return Result{}, fmt.Errorf("%w: %v", vaulterr.ErrBackupFailed, err)
	}

	dek, err := p.RandBytes(crypto.KeyLength)
	if err != nil {
		return Result{}, err
	}

	salt, err := p.RandBytes(crypto.SaltLength)
	if err != nil {
		return Result{}, err
	}
	kek, err := p.DeriveKey(opts.AdminPassword, salt, int(opts.Policy.KDFIterations))
	if err != nil {
		return Result{}, err
	}
	wrapped, err := p.Wrap(kek, dek)
	if err != nil {
		return Result{}, err
	}

	slots := keyslot.NewTable()
	if _, err := slots.AllocateSlot(keyslot.Slot{
		Active:     true,
		Username:   opts.AdminUsername,
		Salt:       salt,
		WrappedDEK: wrapped,
		Role:       policy.RoleAdministrator,
	}); err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("allocate admin slot: %v", err)}
	}
	if err := slots.CheckInvariants(); err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("slot table invariant: %v", err)}
	}

	newPlaintext, err := record.MarshalDocument(doc)
	if err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("re-encode record blob: %v", err)}
	}

	writeOpts := vaultio.WriteV2Options{
		Policy:       opts.Policy,
		Slots:        slots,
		DEK:          dek,
		EnableFEC:    opts.EnableFEC,
		ParityShards: opts.ParityShards,
	}
	if err := vaultio.WriteV2(fs, p, path, writeOpts, newPlaintext); err != nil {
		return Result{}, &vaulterr.MigrationFailedError{Reason: fmt.Sprintf("write v2: %v", err)}
	}

	obs.Info("migrate: v1 vault converted to v2", "path", path, "admin", opts.AdminUsername)
	return Result{Doc: doc, DEK: dek}, nil
}

func copyByteForByte(fs vaultio.FileSystem, src, dst string) error {
	data, err := fs.ReadFile(src)
	if err != nil {
		return err
	}
	return fs.WriteFile(dst, data, vaultio.VaultPermissions)
}
