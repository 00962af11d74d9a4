// Package keyslot implements the multi-user key-slot table (component C6):
// per-user salts, wrapped DEKs, and the slot-table invariants that let many
// passwords unwrap one shared vault DEK.
package keyslot

import (
	"bytes"
	"encoding/binary"

	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// SlotSize is the fixed on-disk size of one slot (§6.1).
const SlotSize = 128

// MaxSlots is the vault-wide slot table capacity.
const MaxSlots = 32

const (
	usernameFieldLen = 32
	saltLen          = 32
	wrappedDEKLen    = 40

	minUsernameLen = 3
	maxUsernameLen = 32
)

// Slot is one entry in the key-slot table.
type Slot struct {
	Active            bool
	Username          string
	Salt              []byte // saltLen bytes
	WrappedDEK        []byte // wrappedDEKLen bytes
	Role              policy.Role
	MustChangePassword bool
	PasswordChangedAt int64 // unix seconds
	LastLoginAt       int64 // unix seconds
}

// Marshal encodes a slot into its fixed 128-byte layout.
func (s Slot) Marshal() ([128]byte, error) {
	var out [SlotSize]byte
	if s.Active {
		if len(s.Username) < minUsernameLen || len(s.Username) > maxUsernameLen {
			return out, vaulterr.ErrInvalidUsername
		}
		if len(s.Salt) != saltLen {
			return out, vaulterr.ErrCorrupted
		}
		if len(s.WrappedDEK) != wrappedDEKLen {
			return out, vaulterr.ErrCorrupted
		}
	}

	off := 0
	writeBool(out[:], &off, s.Active)
	off += 3 // reserved

	out[off] = byte(len(s.Username))
	off++
	copy(out[off:off+usernameFieldLen], s.Username)
	off += usernameFieldLen

	copy(out[off:off+saltLen], s.Salt)
	off += saltLen

	copy(out[off:off+wrappedDEKLen], s.WrappedDEK)
	off += wrappedDEKLen

	out[off] = byte(s.Role)
	off++
	writeBool(out[:], &off, s.MustChangePassword)

	binary.LittleEndian.PutUint64(out[off:], uint64(s.PasswordChangedAt))
	off += 8
	binary.LittleEndian.PutUint64(out[off:], uint64(s.LastLoginAt))
	off += 8

	return out, nil
}

// UnmarshalSlot decodes a fixed 128-byte slot entry.
func UnmarshalSlot(data []byte) (Slot, error) {
	if len(data) != SlotSize {
		return Slot{}, vaulterr.ErrCorrupted
	}
	var s Slot
	off := 0

	s.Active = data[off] != 0
	off++
	off += 3 // reserved

	usernameLen := int(data[off])
	off++
	if usernameLen > usernameFieldLen {
		return Slot{}, vaulterr.ErrCorrupted
	}
	s.Username = string(bytes.TrimRight(data[off:off+usernameLen], "\x00"))
	off += usernameFieldLen

	s.Salt = append([]byte(nil), data[off:off+saltLen]...)
	off += saltLen

	s.WrappedDEK = append([]byte(nil), data[off:off+wrappedDEKLen]...)
	off += wrappedDEKLen

	s.Role = policy.Role(data[off])
	off++
	s.MustChangePassword = data[off] != 0
	off++

	s.PasswordChangedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	s.LastLoginAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8

	return s, nil
}

func writeBool(buf []byte, off *int, v bool) {
	if v {
		buf[*off] = 1
	}
	*off++
}
