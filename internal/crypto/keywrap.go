package crypto

import (
	"crypto/aes"
	"crypto/subtle"
)

// AES Key Wrap per RFC 3394. The teacher's GCM-based "wrap" here (48-byte
// ciphertext+tag plus a separate 12-byte nonce) doesn't match the vault
// format's 40-byte wrapped-key field, so this is the genuine deterministic
// algorithm built directly on the block cipher rather than an AEAD mode.

// defaultIV is the RFC 3394 section 2.2.3.1 default initial value.
var defaultIV = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

const chunkLen = 8

// aesKeyWrap wraps a 32-byte dek under a 32-byte kek, producing 40 bytes.
func aesKeyWrap(kek, dek []byte) ([]byte, error) {
	if len(kek) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(dek) != KeyLength || len(dek)%chunkLen != 0 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := len(dek) / chunkLen
	buf := make([]byte, len(dek)+chunkLen*2)
	r := buf[chunkLen*2:]
	copy(r, dek)

	a := buf[:chunkLen]
	b := buf[chunkLen : chunkLen*2]
	ab := buf[:chunkLen*2]
	copy(a, defaultIV[:])

	for t := 0; t < 6*n; t++ {
		copy(b, r[(t%n)*chunkLen:])
		block.Encrypt(ab, ab)

		u := t + 1
		a[0] ^= byte(u >> 56)
		a[1] ^= byte(u >> 48)
		a[2] ^= byte(u >> 40)
		a[3] ^= byte(u >> 32)
		a[4] ^= byte(u >> 24)
		a[5] ^= byte(u >> 16)
		a[6] ^= byte(u >> 8)
		a[7] ^= byte(u)

		copy(r[(t%n)*chunkLen:], b)
	}

	copy(b, a)
	return buf[chunkLen:], nil
}

// aesKeyUnwrap reverses aesKeyWrap. Returns ErrWrongKek if the integrity
// check (the recovered A value must equal defaultIV) fails.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(kek) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	if len(wrapped) != WrappedKeyLength || len(wrapped)%chunkLen != 0 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}

	n := (len(wrapped) / chunkLen) - 1
	buf := make([]byte, len(wrapped)+chunkLen)
	r := buf[chunkLen*2:]
	copy(r, wrapped[chunkLen:])

	a := buf[:chunkLen]
	b := buf[chunkLen : chunkLen*2]
	ab := buf[:chunkLen*2]
	copy(a, wrapped[:chunkLen])

	for t := 0; t < 6*n; t++ {
		u := 6*n - t
		a[0] ^= byte(u >> 56)
		a[1] ^= byte(u >> 48)
		a[2] ^= byte(u >> 40)
		a[3] ^= byte(u >> 32)
		a[4] ^= byte(u >> 24)
		a[5] ^= byte(u >> 16)
		a[6] ^= byte(u >> 8)
		a[7] ^= byte(u)

		copy(b, r[((u-1)%n)*chunkLen:])
		block.Decrypt(ab, ab)
		copy(r[((u-1)%n)*chunkLen:], b)
	}

	if subtle.ConstantTimeCompare(a, defaultIV[:]) == 0 {
		return nil, ErrWrongKek
	}

	return buf[chunkLen*2:], nil
}
