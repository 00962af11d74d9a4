package vault

import (
	"errors"
	"time"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/migrate"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/record"
	"github.com/tjdeveng/keeptower/internal/secmem"
	"github.com/tjdeveng/keeptower/internal/security"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
	"github.com/tjdeveng/keeptower/internal/vaultio"
)

// ErrSessionClosed is returned by any Session method called after Close.
var ErrSessionClosed = errors.New("vault: session is closed")

const (
	minUsernameLen = 3
	maxUsernameLen = 32
)

type sessionMode int

const (
	modeClosed sessionMode = iota
	modeV1
	modeV2
)

// Session is an open vault: the decoded in-memory model plus whatever
// credential material is needed to re-encrypt it on Save. A V1 session
// holds the single master password; a V2 session holds the unwrapped DEK
// and the authenticated caller's slot index, role and must-change-password
// flag (§4.10).
type Session struct {
	mode     sessionMode
	path     string
	fs       vaultio.FileSystem
	provider crypto.Provider
	audit    *security.AuditLogger

	v1Password *secmem.SecureBuf

	header             vaultio.HeaderV2
	slotIndex          int
	username           string
	role               policy.Role
	mustChangePassword bool
	dek                *secmem.SecureKey32

	doc   record.Document
	dirty bool
}

// CreateV1 creates a new single-password V1 vault at path. Fails with
// ErrVaultAlreadyExists if a file already occupies path.
func CreateV1(path string, password []byte) error {
	fs := vaultio.NewOSFileSystem()
	if _, err := fs.Stat(path); err == nil {
		return vaultio.ErrVaultAlreadyExists
	}
	if err := security.DefaultPasswordPolicy.Validate(password); err != nil {
		return vaulterr.ErrWeakPassword
	}

	p := crypto.NewDefaultProvider()
	plaintext, err := record.MarshalDocument(record.Document{})
	if err != nil {
		return err
	}
	return vaultio.WriteV1(fs, p, path, password, plaintext, crypto.DefaultIterations)
}

// OpenV1 opens an existing V1 vault, deriving its key from password.
func OpenV1(path string, password []byte) (*Session, error) {
	fs := vaultio.NewOSFileSystem()
	p := crypto.NewDefaultProvider()

	plaintext, err := vaultio.ReadV1(fs, p, path, password)
	if err != nil {
		return nil, err
	}
	doc, err := record.UnmarshalDocument(plaintext)
	if err != nil {
		return nil, err
	}

	pw := secmem.NewSecureBuf(len(password))
	copy(pw.Bytes(), password)

	s := &Session{
		mode:       modeV1,
		path:       path,
		fs:         fs,
		provider:   p,
		audit:      initAudit(path),
		v1Password: pw,
		doc:        doc,
	}
	logAudit(s.audit, auditVaultOpen, security.OutcomeSuccess, "v1")
	return s, nil
}

// CreateV2 creates a new V2 vault at path with a single Administrator slot.
// Fails with ErrVaultAlreadyExists if a file already occupies path.
func CreateV2(path, adminUsername string, adminPassword []byte, pol SecurityPolicy) error {
	fs := vaultio.NewOSFileSystem()
	if _, err := fs.Stat(path); err == nil {
		return vaultio.ErrVaultAlreadyExists
	}
	if err := validateUsername(adminUsername); err != nil {
		return err
	}
	if err := (&pol).Validate(); err != nil {
		return err
	}
	if err := validatePasswordLength(adminPassword, pol.MinPasswordLength); err != nil {
		return err
	}

	p := crypto.NewDefaultProvider()
	dek, err := p.RandBytes(crypto.KeyLength)
	if err != nil {
		return err
	}
	salt, kek, err := newSlotKEK(p, pol, adminPassword)
	if err != nil {
		return err
	}
	wrapped, err := p.Wrap(kek, dek)
	if err != nil {
		return err
	}

	slots := keyslot.NewTable()
	if _, err := slots.AllocateSlot(keyslot.Slot{
		Active:     true,
		Username:   adminUsername,
		Salt:       salt,
		WrappedDEK: wrapped,
		Role:       policy.RoleAdministrator,
	}); err != nil {
		return err
	}
	if err := slots.CheckInvariants(); err != nil {
		return err
	}

	plaintext, err := record.MarshalDocument(record.Document{})
	if err != nil {
		return err
	}
	opts := vaultio.WriteV2Options{
		Policy:       pol,
		Slots:        slots,
		DEK:          dek,
		EnableFEC:    true,
		ParityShards: vaultio.DefaultParityShards,
	}
	return vaultio.WriteV2(fs, p, path, opts, plaintext)
}

// OpenV2 authenticates username/password against the V2 vault at path and
// returns an open session, per §4.6 "Open vault".
func OpenV2(path, username string, password []byte) (*Session, error) {
	fs := vaultio.NewOSFileSystem()
	p := crypto.NewDefaultProvider()

	parsed, err := vaultio.LoadHeaderV2(fs, path)
	if err != nil {
		return nil, err
	}

	idx := parsed.Header.Slots.FindActiveByUsername(username)
	if idx < 0 {
		return nil, vaulterr.ErrUnknownUser
	}
	slot := parsed.Header.Slots.Slots[idx]

	kek, err := deriveSlotKEK(p, parsed.Header.Policy, slot, password)
	if err != nil {
		return nil, err
	}
	dek, err := unwrapDEK(p, kek, slot.WrappedDEK)
	if err != nil {
		return nil, err
	}

	// Having successfully unwrapped the DEK, any further decrypt failure
	// indicates ciphertext or header corruption rather than bad
	// credentials (§4.6 step 5). parsed.Decrypt retries once against an
	// FEC-reconstructed header prefix before giving up, so a single flipped
	// header byte doesn't fail an otherwise-valid login.
	plaintext, err := parsed.Decrypt(p, dek)
	if err != nil {
		return nil, vaulterr.ErrCorrupted
	}
	doc, err := record.UnmarshalDocument(plaintext)
	if err != nil {
		return nil, vaulterr.ErrCorrupted
	}

	dekKey, err := secmem.NewSecureKey32(dek)
	if err != nil {
		return nil, err
	}
	secmem.ClearBytes(dek)

	s := &Session{
		mode:               modeV2,
		path:               path,
		fs:                 fs,
		provider:           p,
		audit:              initAudit(path),
		header:             parsed.Header,
		slotIndex:          idx,
		username:           username,
		role:               slot.Role,
		mustChangePassword: slot.MustChangePassword,
		dek:                dekKey,
		doc:                doc,
	}
	// last_login_at is staged into the header like any other mutation and
	// becomes durable on the session's next Save (§4.10: "all mutations
	// stage to the in-memory model").
	s.header.Slots.Slots[idx].LastLoginAt = time.Now().Unix()
	s.dirty = true

	logAudit(s.audit, auditVaultOpen, security.OutcomeSuccess, username)
	return s, nil
}

// Close wipes the session's key material. Unsaved mutations are lost; Save
// must be called first to persist them.
func (s *Session) Close() error {
	if s.mode == modeClosed {
		return nil
	}
	if s.dek != nil {
		s.dek.Wipe()
	}
	if s.v1Password != nil {
		s.v1Password.Wipe()
	}
	s.mode = modeClosed
	return nil
}

// Save serialises the in-memory model, re-encrypts it, and writes it
// atomically. A failed Save leaves the on-disk file and the in-memory
// model both in the pre-Save state (§4.10).
func (s *Session) Save() error {
	if s.mode == modeClosed {
		return ErrSessionClosed
	}

	plaintext, err := record.MarshalDocument(s.doc)
	if err != nil {
		return err
	}

	switch s.mode {
	case modeV1:
		if err := vaultio.WriteV1(s.fs, s.provider, s.path, s.v1Password.Bytes(), plaintext, crypto.DefaultIterations); err != nil {
			logAudit(s.audit, auditVaultSave, security.OutcomeFailure, err.Error())
			return err
		}
	case modeV2:
		opts := vaultio.WriteV2Options{
			Policy:       s.header.Policy,
			Slots:        s.header.Slots,
			DEK:          s.dek.Bytes(),
			EnableFEC:    true,
			ParityShards: vaultio.DefaultParityShards,
		}
		if err := vaultio.WriteV2(s.fs, s.provider, s.path, opts, plaintext); err != nil {
			logAudit(s.audit, auditVaultSave, security.OutcomeFailure, err.Error())
			return err
		}
	}

	s.dirty = false
	logAudit(s.audit, auditVaultSave, security.OutcomeSuccess, s.username)
	return nil
}

// MigrateToV2 converts the session's open V1 vault to V2 in place, with a
// single Administrator slot for adminUsername, per §4.9. On success the
// session becomes an OpenV2 session over the new file; on failure the
// session is left exactly as it was (still OpenV1).
func (s *Session) MigrateToV2(adminUsername string, adminPassword []byte, pol SecurityPolicy) error {
	if s.mode != modeV1 {
		return vaulterr.ErrNotPermitted
	}

	opts := migrate.Options{
		AdminUsername: adminUsername,
		AdminPassword: adminPassword,
		Policy:        pol,
		EnableFEC:     true,
		ParityShards:  vaultio.DefaultParityShards,
	}
	result, err := migrate.Run(s.fs, s.provider, s.path, s.v1Password.Bytes(), opts)
	if err != nil {
		logAudit(s.audit, auditMigration, security.OutcomeFailure, err.Error())
		return err
	}

	dekKey, err := secmem.NewSecureKey32(result.DEK)
	if err != nil {
		return err
	}

	// migrate.Run has already replaced the on-disk file with the V2
	// rewrite at this point, so a failure from here on leaves the file
	// already V2 while this Session, having never flipped s.mode, still
	// reports and treats itself as V1 until the caller opens it again.
	parsed, err := vaultio.LoadHeaderV2(s.fs, s.path)
	if err != nil {
		return err
	}
	idx := parsed.Header.Slots.FindActiveByUsername(adminUsername)
	if idx < 0 {
		return vaulterr.ErrCorrupted
	}

	s.v1Password.Wipe()
	s.v1Password = nil
	s.mode = modeV2
	s.header = parsed.Header
	s.slotIndex = idx
	s.username = adminUsername
	s.role = policy.RoleAdministrator
	s.mustChangePassword = false
	s.dek = dekKey
	s.doc = result.Doc
	s.dirty = false

	logAudit(s.audit, auditMigration, security.OutcomeSuccess, adminUsername)
	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return vaulterr.ErrInvalidUsername
	}
	return nil
}

func validatePasswordLength(password []byte, minLen uint32) error {
	pol := security.PasswordPolicy{MinLength: int(minLen)}
	if err := pol.Validate(password); err != nil {
		return vaulterr.ErrWeakPassword
	}
	return nil
}
