// Package policy defines the per-vault security policy block (component C7)
// and its binary encoding within the V2 header.
package policy

import (
	"bytes"
	"encoding/binary"

	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// ChallengeLength is the fixed size of the shared token challenge.
const ChallengeLength = 64

// DefaultMinPasswordLength is the policy default per §3 VaultSecurityPolicy.
const DefaultMinPasswordLength = 12

// MinIterationsFloor mirrors crypto.MinIterations; duplicated here as a
// plain constant so this package does not need to import internal/crypto
// just for one number.
const MinIterationsFloor = 100_000

// SecurityPolicy is the vault-wide policy block stored in the V2 header.
type SecurityPolicy struct {
	RequireToken       bool
	MinPasswordLength  uint32
	KDFIterations      uint32
	TokenChallenge     []byte // nil unless RequireToken; always ChallengeLength bytes when present
}

// NewDefault returns the policy new vaults are created with absent an
// explicit caller override.
func NewDefault() SecurityPolicy {
	return SecurityPolicy{
		RequireToken:      false,
		MinPasswordLength: DefaultMinPasswordLength,
		KDFIterations:     MinIterationsFloor,
	}
}

// Validate enforces the invariants a policy must satisfy before it can be
// persisted: iteration count clamps up to the floor rather than being
// rejected (§3), and a required token must carry a challenge of the right
// size.
func (p *SecurityPolicy) Validate() error {
	if p.KDFIterations < MinIterationsFloor {
		p.KDFIterations = MinIterationsFloor
	}
	if p.MinPasswordLength == 0 {
		p.MinPasswordLength = DefaultMinPasswordLength
	}
	if p.RequireToken && len(p.TokenChallenge) != ChallengeLength {
		return vaulterr.ErrCorrupted
	}
	if !p.RequireToken {
		p.TokenChallenge = nil
	}
	return nil
}

// Marshal encodes the policy block per §6.1:
// require_token(u8) min_password_length(u32 LE) kdf_iterations(u32 LE)
// token_challenge_present(u8) [token_challenge(64B) iff present].
func (p SecurityPolicy) Marshal() []byte {
	var buf bytes.Buffer
	writeBool(&buf, p.RequireToken)

	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], p.MinPasswordLength)
	buf.Write(u32[:])
	binary.LittleEndian.PutUint32(u32[:], p.KDFIterations)
	buf.Write(u32[:])

	present := len(p.TokenChallenge) == ChallengeLength
	writeBool(&buf, present)
	if present {
		buf.Write(p.TokenChallenge)
	}
	return buf.Bytes()
}

// Unmarshal decodes a policy block starting at the front of data and
// returns the policy plus the number of bytes consumed.
func Unmarshal(data []byte) (SecurityPolicy, int, error) {
	if len(data) < 1+4+4+1 {
		return SecurityPolicy{}, 0, vaulterr.ErrCorrupted
	}
	var p SecurityPolicy
	off := 0

	p.RequireToken = data[off] != 0
	off++

	p.MinPasswordLength = binary.LittleEndian.Uint32(data[off:])
	off += 4
	p.KDFIterations = binary.LittleEndian.Uint32(data[off:])
	off += 4

	present := data[off] != 0
	off++

	if present {
		if len(data) < off+ChallengeLength {
			return SecurityPolicy{}, 0, vaulterr.ErrCorrupted
		}
		p.TokenChallenge = append([]byte(nil), data[off:off+ChallengeLength]...)
		off += ChallengeLength
	}

	if p.KDFIterations < MinIterationsFloor {
		p.KDFIterations = MinIterationsFloor
	}

	return p, off, nil
}

func writeBool(buf *bytes.Buffer, v bool) {
	if v {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}
