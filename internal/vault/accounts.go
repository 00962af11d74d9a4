package vault

import (
	"errors"
	"time"

	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/record"
	"github.com/tjdeveng/keeptower/internal/security"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// ErrAccountNotFound is returned by GetAccount/DeleteAccount when id does
// not name an account the calling session may see.
var ErrAccountNotFound = errors.New("vault: no such account")

// visible reports whether role may see rec at all, per the §4.7 "read
// admin-only accounts" row. A V1 session has no role gating — every
// account is visible, matching the single-user source format.
func (s *Session) visible(rec AccountRecord) bool {
	if s.mode == modeV1 {
		return true
	}
	return s.role == policy.RoleAdministrator || !rec.AdminVisibleOnly
}

// ListAccounts returns every account visible to the session's role that
// matches filter. filter may be nil to request everything visible.
func (s *Session) ListAccounts(filter *AccountFilter) ([]AccountRecord, error) {
	if s.mode == modeClosed {
		return nil, ErrSessionClosed
	}
	out := make([]AccountRecord, 0, len(s.doc.Accounts))
	for _, rec := range s.doc.Accounts {
		if !s.visible(rec) {
			continue
		}
		if !filter.matches(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// GetAccount returns the account with the given id, or ErrAccountNotFound
// if it does not exist or is admin-visible-only and the caller is not an
// Administrator.
func (s *Session) GetAccount(id RecordID) (*AccountRecord, error) {
	if s.mode == modeClosed {
		return nil, ErrSessionClosed
	}
	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID == id {
			if !s.visible(s.doc.Accounts[i]) {
				return nil, ErrAccountNotFound
			}
			rec := s.doc.Accounts[i]
			return &rec, nil
		}
	}
	return nil, ErrAccountNotFound
}

// UpsertAccount creates rec (if its ID does not yet exist) or replaces the
// existing account with the same ID, enforcing the must-change-password
// gate and the admin-only-visible write restriction (§4.7).
func (s *Session) UpsertAccount(rec AccountRecord) error {
	if s.mode == modeClosed {
		return ErrSessionClosed
	}
	if s.mustChangePassword {
		return vaulterr.ErrPasswordChangeRequired
	}
	if s.mode == modeV2 && s.role != policy.RoleAdministrator && rec.AdminVisibleOnly {
		return vaulterr.ErrNotPermitted
	}
	rec.Tags = record.CanonicalizeTags(rec.Tags)

	now := time.Now().UTC()
	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID == rec.ID {
			if s.mode == modeV2 && s.role != policy.RoleAdministrator && s.doc.Accounts[i].AdminVisibleOnly {
				return vaulterr.ErrNotPermitted
			}
			rec.CreatedAt = s.doc.Accounts[i].CreatedAt
			rec.ModifiedAt = now
			s.doc.Accounts[i] = rec
			s.dirty = true
			logAudit(s.audit, "account_update", security.OutcomeSuccess, rec.Name)
			return nil
		}
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.ModifiedAt = now
	s.doc.Accounts = append(s.doc.Accounts, rec)
	s.dirty = true
	logAudit(s.audit, "account_add", security.OutcomeSuccess, rec.Name)
	return nil
}

// DeleteAccount removes the account with the given id, enforcing the
// admin-only-delete restriction (§4.7) and the must-change-password gate.
func (s *Session) DeleteAccount(id RecordID) error {
	if s.mode == modeClosed {
		return ErrSessionClosed
	}
	if s.mustChangePassword {
		return vaulterr.ErrPasswordChangeRequired
	}

	for i := range s.doc.Accounts {
		if s.doc.Accounts[i].ID != id {
			continue
		}
		rec := s.doc.Accounts[i]
		if !s.visible(rec) {
			return ErrAccountNotFound
		}
		if s.mode == modeV2 && s.role != policy.RoleAdministrator && rec.AdminOnlyDelete {
			return vaulterr.ErrNotPermitted
		}
		s.doc.Accounts = append(s.doc.Accounts[:i], s.doc.Accounts[i+1:]...)
		s.dirty = true
		logAudit(s.audit, "account_delete", security.OutcomeSuccess, rec.Name)
		return nil
	}
	return ErrAccountNotFound
}
