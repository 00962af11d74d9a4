package vaultio

import (
	"encoding/binary"

	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

const v2Version = 2

// HeaderV2 is everything that precedes the ciphertext in a V2 vault file:
// magic, version, policy block, slot table, body salt, AEAD nonce and the
// ciphertext length. The entire encoded prefix doubles as AEAD associated
// data (§6.1: "AAD = bytes [0, start-of-ciphertext)").
type HeaderV2 struct {
	Policy        policy.SecurityPolicy
	Slots         *keyslot.Table
	BodySalt      []byte // 32 bytes, retained for legacy KDF compatibility
	AEADNonce     []byte // 12 bytes
	CiphertextLen uint64
}

// EncodePrefix serializes the header fields that precede the ciphertext.
// The returned slice is used both as the on-disk prefix and as AAD.
func (h HeaderV2) EncodePrefix() ([]byte, error) {
	if len(h.BodySalt) != 32 {
		return nil, vaulterr.ErrCorrupted
	}
	if len(h.AEADNonce) != 12 {
		return nil, vaulterr.ErrCorrupted
	}

	out := make([]byte, 0, 4096)
	out = append(out, Magic[:]...)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], v2Version)
	out = append(out, u32[:]...)

	out = append(out, h.Policy.Marshal()...)

	slots, err := h.Slots.MarshalSlots()
	if err != nil {
		return nil, err
	}
	out = append(out, slots...)

	out = append(out, h.BodySalt...)
	out = append(out, h.AEADNonce...)

	var u64 [8]byte
	binary.LittleEndian.PutUint64(u64[:], h.CiphertextLen)
	out = append(out, u64[:]...)

	return out, nil
}

// DecodeHeaderV2 parses the fixed-to-variable-length prefix of a V2 vault
// file (everything up to and including ciphertext_len) and returns the
// header plus the byte offset at which the ciphertext begins.
func DecodeHeaderV2(data []byte) (HeaderV2, int, error) {
	if len(data) < 8 {
		return HeaderV2{}, 0, vaulterr.ErrCorrupted
	}
	if data[0] != Magic[0] || data[1] != Magic[1] || data[2] != Magic[2] || data[3] != Magic[3] {
		return HeaderV2{}, 0, vaulterr.ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != v2Version {
		return HeaderV2{}, 0, vaulterr.ErrUnsupportedVersion
	}

	off := 8
	pol, n, err := policy.Unmarshal(data[off:])
	if err != nil {
		return HeaderV2{}, 0, err
	}
	off += n

	slots, n, err := keyslot.UnmarshalSlots(data[off:])
	if err != nil {
		return HeaderV2{}, 0, err
	}
	off += n

	if len(data) < off+32+12+8 {
		return HeaderV2{}, 0, vaulterr.ErrCorrupted
	}
	bodySalt := append([]byte(nil), data[off:off+32]...)
	off += 32
	nonce := append([]byte(nil), data[off:off+12]...)
	off += 12
	ctLen := binary.LittleEndian.Uint64(data[off : off+8])
	off += 8

	h := HeaderV2{
		Policy:        pol,
		Slots:         slots,
		BodySalt:      bodySalt,
		AEADNonce:     nonce,
		CiphertextLen: ctLen,
	}
	return h, off, nil
}
