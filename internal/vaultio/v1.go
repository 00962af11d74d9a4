package vaultio

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// Magic is the 4-byte vault format identifier, "TWLT".
var Magic = [4]byte{'T', 'W', 'L', 'T'}

const v1Version = 1

// v1HeaderLen is magic(4) + version(4) + iterations(4) + salt(32) + nonce(12).
// The distilled spec's "AAD = first 52 bytes" undercounts this by 4 bytes;
// this implementation uses "every header byte preceding the ciphertext"
// (the same rule §4.5/§6.1 state for V2) as the authoritative definition,
// see DESIGN.md.
const v1HeaderLen = 4 + 4 + 4 + crypto.SaltLength + crypto.NonceLength

// LegacyIterations is the KDF iteration count used for pre-magic legacy
// vaults (files with no TWLT header at all).
const LegacyIterations = 100_000

// ReadV1 opens a V1-format vault file and returns its decrypted record blob.
// Files without the magic prefix are treated as pre-magic legacy: a zero
// salt and LegacyIterations are used instead of an on-disk header.
func ReadV1(fs FileSystem, p crypto.Provider, path string, password []byte) ([]byte, error) {
	raw, err := fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, err
	}

	if len(raw) < 4 || raw[0] != Magic[0] || raw[1] != Magic[1] || raw[2] != Magic[2] || raw[3] != Magic[3] {
		return readLegacyV1(p, raw, password)
	}

	if len(raw) < v1HeaderLen {
		return nil, vaulterr.ErrCorrupted
	}
	version := binary.LittleEndian.Uint32(raw[4:8])
	if version != v1Version {
		return nil, vaulterr.ErrUnsupportedVersion
	}

	iterations := binary.LittleEndian.Uint32(raw[8:12])
	salt := raw[12 : 12+crypto.SaltLength]
	nonce := raw[12+crypto.SaltLength : v1HeaderLen]
	ciphertext := raw[v1HeaderLen:]
	aad := raw[:v1HeaderLen]

	key, err := p.DeriveKey(password, salt, int(iterations))
	if err != nil {
		return nil, err
	}
	plaintext, err := p.Decrypt(key, nonce, aad, ciphertext)
	if err != nil {
		return nil, vaulterr.ErrBadCredentials
	}
	return plaintext, nil
}

// readLegacyV1 decrypts a pre-magic legacy vault: no header at all, just
// raw AEAD ciphertext under a key derived with a canonical zero salt.
func readLegacyV1(p crypto.Provider, raw, password []byte) ([]byte, error) {
	if len(raw) < crypto.NonceLength {
		return nil, vaulterr.ErrCorrupted
	}
	zeroSalt := make([]byte, crypto.SaltLength)
	nonce := raw[:crypto.NonceLength]
	ciphertext := raw[crypto.NonceLength:]

	key, err := p.DeriveKey(password, zeroSalt, LegacyIterations)
	if err != nil {
		return nil, err
	}
	plaintext, err := p.Decrypt(key, nonce, nil, ciphertext)
	if err != nil {
		return nil, vaulterr.ErrBadCredentials
	}
	return plaintext, nil
}

// WriteV1 atomically creates or overwrites a full-header V1 vault file
// (used both by create_v1 and by the legacy-upgrade re-save path).
func WriteV1(fs FileSystem, p crypto.Provider, path string, password, plaintext []byte, iterations int) error {
	salt, err := p.RandBytes(crypto.SaltLength)
	if err != nil {
		return err
	}
	nonce, err := p.RandBytes(crypto.NonceLength)
	if err != nil {
		return err
	}

	header := make([]byte, v1HeaderLen)
	copy(header[0:4], Magic[:])
	binary.LittleEndian.PutUint32(header[4:8], v1Version)
	binary.LittleEndian.PutUint32(header[8:12], uint32(iterations))
	copy(header[12:12+crypto.SaltLength], salt)
	copy(header[12+crypto.SaltLength:v1HeaderLen], nonce)

	key, err := p.DeriveKey(password, salt, iterations)
	if err != nil {
		return err
	}
	ciphertext, err := p.Encrypt(key, nonce, header, plaintext)
	if err != nil {
		return fmt.Errorf("vaultio: encrypt v1 blob: %w", err)
	}

	out := append(header, ciphertext...)
	return writeAtomic(fs, path, out, path+".backup")
}
