// Package vault is the public vault facade (component C10): it owns the
// session lifecycle, stages account and key-slot mutations against an
// in-memory model, and is the only package that sequences the lower-level
// format (vaultio), key-slot (keyslot), policy (policy) and token (token)
// engines into the workflows described in §4.6-§4.9.
package vault

import (
	"time"

	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/record"
)

// AccountRecord is the facade's public account shape; it is exactly the
// record package's wire model, re-exported so callers never import
// internal/record directly.
type AccountRecord = record.AccountRecord

// RecordID is a stable 128-bit account or group identifier.
type RecordID = record.ID

// Role is a key slot's privilege level.
type Role = policy.Role

// SecurityPolicy is the vault-wide policy block persisted in the V2 header.
type SecurityPolicy = policy.SecurityPolicy

// AccountFilter narrows ListAccounts. A nil field does not filter on that
// dimension. Standard-role sessions never see admin-visible-only accounts
// regardless of filter; that gate is applied unconditionally, not exposed
// as a filter field a caller could disable.
type AccountFilter struct {
	GroupID  *RecordID
	Tag      string
	Favorite *bool
}

func (f *AccountFilter) matches(rec AccountRecord) bool {
	if f == nil {
		return true
	}
	if f.GroupID != nil && rec.GroupID != *f.GroupID {
		return false
	}
	if f.Favorite != nil && rec.Favorite != *f.Favorite {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, t := range rec.Tags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// KeySlotView is a public projection of one key slot: everything a caller
// needs to list users, with the salt and wrapped DEK withheld.
type KeySlotView struct {
	Username           string
	Role               Role
	MustChangePassword bool
	PasswordChangedAt  time.Time
	LastLoginAt        time.Time
}
