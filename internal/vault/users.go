package vault

import (
	"time"

	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/security"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// ListUsers returns a redacted view of every active key slot: no salts, no
// wrapped DEKs. Only meaningful for a V2 session.
func (s *Session) ListUsers() ([]KeySlotView, error) {
	if s.mode == modeClosed {
		return nil, ErrSessionClosed
	}
	if s.mode != modeV2 {
		return nil, vaulterr.ErrNotPermitted
	}

	out := make([]KeySlotView, 0, len(s.header.Slots.Slots))
	for _, slot := range s.header.Slots.Slots {
		if !slot.Active {
			continue
		}
		out = append(out, KeySlotView{
			Username:           slot.Username,
			Role:               slot.Role,
			MustChangePassword: slot.MustChangePassword,
			PasswordChangedAt:  unixOrZero(slot.PasswordChangedAt),
			LastLoginAt:        unixOrZero(slot.LastLoginAt),
		})
	}
	return out, nil
}

// AddUser allocates a new key slot for username, wrapping the vault's
// existing DEK under a KEK derived from tempPassword. The new slot starts
// with must_change_password set (§4.6 "Add user").
func (s *Session) AddUser(username string, tempPassword []byte, role Role) error {
	if err := s.requireV2Admin(); err != nil {
		return err
	}
	if err := validateUsername(username); err != nil {
		return err
	}
	if s.header.Slots.FindActiveByUsername(username) >= 0 {
		return vaulterr.ErrDuplicateUsername
	}
	if err := validatePasswordLength(tempPassword, s.header.Policy.MinPasswordLength); err != nil {
		return err
	}

	salt, kek, err := newSlotKEK(s.provider, s.header.Policy, tempPassword)
	if err != nil {
		return err
	}
	wrapped, err := s.provider.Wrap(kek, s.dek.Bytes())
	if err != nil {
		return err
	}

	slot := keyslot.Slot{
		Active:             true,
		Username:           username,
		Salt:               salt,
		WrappedDEK:         wrapped,
		Role:               role,
		MustChangePassword: true,
		PasswordChangedAt:  time.Now().Unix(),
	}
	if _, err := s.header.Slots.AllocateSlot(slot); err != nil {
		return err
	}
	if err := s.header.Slots.CheckInvariants(); err != nil {
		return err
	}

	s.dirty = true
	logAudit(s.audit, auditUserAdd, security.OutcomeSuccess, username)
	return nil
}

// RemoveUser deactivates and zeroes username's key slot. Rejects removing
// the calling session's own user or the last active Administrator (§4.6
// "Remove user").
func (s *Session) RemoveUser(username string) error {
	if err := s.requireV2Admin(); err != nil {
		return err
	}
	if username == s.username {
		return vaulterr.ErrCannotRemoveSelf
	}

	idx := s.header.Slots.FindActiveByUsername(username)
	if idx < 0 {
		return vaulterr.ErrUnknownUser
	}
	before := s.header.Slots.Slots[idx]

	if err := s.header.Slots.RemoveSlot(idx); err != nil {
		return err
	}
	if err := s.header.Slots.CheckInvariants(); err != nil {
		s.header.Slots.Slots[idx] = before
		return err
	}

	s.dirty = true
	logAudit(s.audit, auditUserRemove, security.OutcomeSuccess, username)
	return nil
}

// ChangePassword re-keys targetUsername's slot under newPassword. A caller
// changing their own password must supply the correct oldPassword, which
// this also uses to clear that session's must-change-password gate; an
// Administrator resetting another user's password does not need to know
// their old password (§4.6 "Change password").
func (s *Session) ChangePassword(targetUsername string, oldPassword, newPassword []byte) error {
	if s.mode != modeV2 {
		return vaulterr.ErrNotPermitted
	}
	selfChange := targetUsername == s.username
	if !selfChange {
		if s.role != policy.RoleAdministrator {
			return vaulterr.ErrNotPermitted
		}
		if s.mustChangePassword {
			return vaulterr.ErrPasswordChangeRequired
		}
	}
	// selfChange is the must-change-password gate's only escape hatch: no
	// gate check in that branch, by design (§4.7).

	idx := s.header.Slots.FindActiveByUsername(targetUsername)
	if idx < 0 {
		return vaulterr.ErrUnknownUser
	}
	slot := s.header.Slots.Slots[idx]

	if selfChange {
		oldKEK, err := deriveSlotKEK(s.provider, s.header.Policy, slot, oldPassword)
		if err != nil {
			return err
		}
		if _, err := unwrapDEK(s.provider, oldKEK, slot.WrappedDEK); err != nil {
			return err
		}
	}

	if err := validatePasswordLength(newPassword, s.header.Policy.MinPasswordLength); err != nil {
		return err
	}

	newSalt, newKEK, err := newSlotKEK(s.provider, s.header.Policy, newPassword)
	if err != nil {
		return err
	}
	wrapped, err := s.provider.Wrap(newKEK, s.dek.Bytes())
	if err != nil {
		return err
	}

	slot.Salt = newSalt
	slot.WrappedDEK = wrapped
	slot.MustChangePassword = false
	slot.PasswordChangedAt = time.Now().Unix()
	s.header.Slots.Slots[idx] = slot

	if err := s.header.Slots.CheckInvariants(); err != nil {
		return err
	}

	if selfChange {
		s.mustChangePassword = false
	}
	s.dirty = true
	logAudit(s.audit, auditPasswordChange, security.OutcomeSuccess, targetUsername)
	return nil
}

// requireV2Admin enforces the §4.7 rows gated to Administrator-only plus
// the must-change-password mutation gate, applicable to every key-slot
// mutation except a self password change.
func (s *Session) requireV2Admin() error {
	if s.mode == modeClosed {
		return ErrSessionClosed
	}
	if s.mode != modeV2 {
		return vaulterr.ErrNotPermitted
	}
	if s.mustChangePassword {
		return vaulterr.ErrPasswordChangeRequired
	}
	if s.role != policy.RoleAdministrator {
		return vaulterr.ErrNotPermitted
	}
	return nil
}

func unixOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
