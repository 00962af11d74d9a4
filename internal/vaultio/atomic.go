package vaultio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tjdeveng/keeptower/internal/obs"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// VaultPermissions restricts vault and backup files to owner read/write.
const VaultPermissions = 0600

// TempSuffix names the staging file used by writeAtomic before it is
// renamed over the live path.
const TempSuffix = ".tmp"

// writeAtomic writes data to path via a temp-file-then-fsync-then-rename
// sequence, taking a backup of any prior file at path first. Matches the
// §4.5 atomic writer: on any error after the temp file exists, the temp
// file is removed and the live file is left untouched.
func writeAtomic(fs FileSystem, path string, data []byte, backupPath string) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("vaultio: create vault directory: %w", err)
	}

	if backupPath != "" {
		if err := copyIfExists(fs, path, backupPath); err != nil {
			return fmt.Errorf("%w: %v", vaulterr.ErrBackupFailed, err)
		}
	}

	tempPath := path + TempSuffix + "." + randomSuffix()

	file, err := fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, VaultPermissions)
	if err != nil {
		return fmt.Errorf("vaultio: create temp file: %w", err)
	}
	cleanupTemp := true
	defer func() {
		if cleanupTemp {
			_ = file.Close()
			if err := fs.Remove(tempPath); err != nil && !os.IsNotExist(err) {
				obs.Debug("vaultio: failed to remove temp file", "path", tempPath, "err", err)
			}
		}
	}()

	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("vaultio: write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("vaultio: sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("vaultio: close temp file: %w", err)
	}

	if err := fs.Rename(tempPath, path); err != nil {
		return fmt.Errorf("%w: %v", vaulterr.ErrAtomicSwapFailed, err)
	}
	cleanupTemp = false

	return nil
}

func copyIfExists(fs FileSystem, src, dst string) error {
	data, err := fs.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return fs.WriteFile(dst, data, VaultPermissions)
}

// copyFileByteForByte duplicates src to dst, used by migration for the
// §4.9 step-2 pre-migration backup (permissions preserved, content
// identical).
func copyFileByteForByte(fs FileSystem, src, dst string) error {
	in, err := fs.OpenFile(src, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, VaultPermissions)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

func randomSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
