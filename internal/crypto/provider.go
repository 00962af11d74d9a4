// Package crypto wraps the fixed cryptographic suite used by the vault
// engine: AES-256-GCM AEAD, PBKDF2-HMAC-SHA256 key derivation, AES-256 key
// wrap (RFC 3394), HMAC-SHA256, and a CSPRNG. Callers never choose
// algorithms; they choose a Provider.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Fixed sizes mandated by the on-disk format. Algorithm agility beyond this
// suite is explicitly a non-goal.
const (
	KeyLength        = 32 // AES-256 key/DEK/KEK length
	NonceLength      = 12 // AES-GCM standard nonce length
	TagLength        = 16 // AES-GCM tag length
	SaltLength       = 32 // PBKDF2 salt length
	WrappedKeyLength = 40 // RFC 3394 wrap of a 32-byte key

	// DefaultIterations is the policy default PBKDF2 iteration count. The
	// on-disk policy block is the source of truth per vault; this is only
	// the value new vaults are created with unless a caller overrides it.
	DefaultIterations = 100_000
	// MinIterations is the floor enforced when a policy is loaded from disk
	// or otherwise supplied; lower values are clamped up to this, never
	// rejected outright (§3 VaultSecurityPolicy).
	MinIterations = 100_000
)

// Provider implements the fixed algorithm suite (§4.1). A validated
// cryptographic module can be substituted behind this interface without
// changing any caller; the default implementation routes through the
// standard library and golang.org/x/crypto.
type Provider interface {
	// Encrypt returns ciphertext||tag for plaintext under key/nonce, with
	// aad authenticated but not encrypted.
	Encrypt(key, nonce, aad, plaintext []byte) ([]byte, error)
	// Decrypt reverses Encrypt. Returns ErrTagMismatch on any tamper.
	Decrypt(key, nonce, aad, ciphertext []byte) ([]byte, error)
	// DeriveKey runs PBKDF2-HMAC-SHA256 for iterations rounds.
	DeriveKey(password, salt []byte, iterations int) ([]byte, error)
	// Wrap wraps a 32-byte DEK under a 32-byte KEK per RFC 3394, producing
	// a 40-byte output.
	Wrap(kek, dek []byte) ([]byte, error)
	// Unwrap reverses Wrap. Returns ErrWrongKek on integrity failure.
	Unwrap(kek, wrapped []byte) ([]byte, error)
	// HMACSHA256 computes an HMAC-SHA256 tag over data.
	HMACSHA256(key, data []byte) []byte
	// RandBytes returns n cryptographically random bytes.
	RandBytes(n int) ([]byte, error)
}

type stdProvider struct{}

// NewDefaultProvider returns the Provider built on the standard library and
// golang.org/x/crypto. It is bound once by the vault facade at construction
// time; every other component receives a Provider, never concrete types.
func NewDefaultProvider() Provider { return stdProvider{} }

// NewProvider wraps a caller-supplied Provider (e.g. a validated module),
// falling back to the default implementation if impl is nil. The facade's
// public contract is identical regardless of which provider is bound.
func NewProvider(impl Provider) Provider {
	if impl == nil {
		return NewDefaultProvider()
	}
	return impl
}

func (stdProvider) Encrypt(key, nonce, aad, plaintext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func (stdProvider) Decrypt(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(nonce) != NonceLength {
		return nil, ErrInvalidNonceLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrTagMismatch
	}
	return plaintext, nil
}

func (stdProvider) DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidSaltLength
	}
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeyLength, sha256.New), nil
}

func (stdProvider) Wrap(kek, dek []byte) ([]byte, error) {
	return aesKeyWrap(kek, dek)
}

func (stdProvider) Unwrap(kek, wrapped []byte) ([]byte, error) {
	return aesKeyUnwrap(kek, wrapped)
}

func (stdProvider) HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (stdProvider) RandBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, ErrRngFailure
	}
	return buf, nil
}

// CtEq performs a constant-time byte-slice comparison.
func CtEq(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
