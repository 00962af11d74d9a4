package vault

import (
	"time"

	"github.com/tjdeveng/keeptower/internal/obs"
	"github.com/tjdeveng/keeptower/internal/security"
)

// Audit event types, mirrored from the teacher's security package constants
// but scoped to the operations this facade actually performs.
const (
	auditVaultOpen     = "vault_open"
	auditVaultSave     = "vault_save"
	auditUserAdd       = "user_add"
	auditUserRemove    = "user_remove"
	auditPasswordChange = "password_change"
	auditMigration     = "migration"
)

// initAudit opens (or creates) the tamper-evident audit log at
// <path>.audit.log. Unlike the teacher's opt-in toggle, this facade keeps
// auditing always-on per §7.1's "every mutation is accountable" posture;
// failure to initialise it is logged and never blocks the operation — a
// vault is still usable without a writable OS keychain for the audit key.
func initAudit(path string) *security.AuditLogger {
	logger, err := security.NewAuditLogger(path+".audit.log", path)
	if err != nil {
		obs.Warn("vault: audit logging unavailable", "path", path, "err", err)
		return nil
	}
	return logger
}

func logAudit(a *security.AuditLogger, eventType, outcome, detail string) {
	if a == nil {
		return
	}
	entry := &security.AuditLogEntry{
		Timestamp:      time.Now(),
		EventType:      eventType,
		Outcome:        outcome,
		CredentialName: detail,
	}
	if err := a.Log(entry); err != nil {
		obs.Warn("vault: audit log write failed", "event", eventType, "err", err)
	}
}
