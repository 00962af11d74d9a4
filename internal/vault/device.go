package vault

import (
	"context"
	"fmt"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/token"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// newDevice constructs the HMACDevice a session talks to when a policy
// requires a token second factor. Connecting to reader 0 is the only
// transport current devices support; tests substitute this var with a
// fixed in-memory device rather than requiring real hardware.
var newDevice = func() (token.HMACDevice, error) {
	card, err := token.ConnectPCSC(0)
	if err != nil {
		return nil, fmt.Errorf("vault: connect token device: %w", err)
	}
	return token.NewAPDUHMACDevice(card), nil
}

// challengeResponse runs the full async challenge-response protocol to
// completion synchronously, since every facade operation is documented as
// short and synchronous (§5) even though the token subsystem underneath is
// asynchronous and cancellable.
func challengeResponse(challenge []byte) ([]byte, error) {
	dev, err := newDevice()
	if err != nil {
		return nil, err
	}
	d := token.NewDevice(dev)
	op, err := token.ChallengeResponseAsync(context.Background(), d, challenge)
	if err != nil {
		return nil, err
	}
	return op.Drain(context.Background())
}

// deriveSlotKEK derives the KEK for an existing slot: KDF(password, slot
// salt, policy iterations), folded with a fresh token response when the
// policy requires one (§4.6 step 2-3).
func deriveSlotKEK(p crypto.Provider, pol policy.SecurityPolicy, slot keyslot.Slot, password []byte) ([]byte, error) {
	kek, err := p.DeriveKey(password, slot.Salt, int(pol.KDFIterations))
	if err != nil {
		return nil, err
	}
	if pol.RequireToken {
		resp, err := challengeResponse(pol.TokenChallenge)
		if err != nil {
			return nil, err
		}
		if err := token.Fold(kek, resp); err != nil {
			return nil, err
		}
	}
	return kek, nil
}

// newSlotKEK generates a fresh salt and derives the KEK a brand-new or
// re-keyed slot wraps its DEK under, applying the same token fold as
// deriveSlotKEK when the policy requires one (§4.6 step 3, "create vault"
// and "add user").
func newSlotKEK(p crypto.Provider, pol policy.SecurityPolicy, password []byte) (salt, kek []byte, err error) {
	salt, err = p.RandBytes(crypto.SaltLength)
	if err != nil {
		return nil, nil, err
	}
	kek, err = p.DeriveKey(password, salt, int(pol.KDFIterations))
	if err != nil {
		return nil, nil, err
	}
	if pol.RequireToken {
		resp, err := challengeResponse(pol.TokenChallenge)
		if err != nil {
			return nil, nil, err
		}
		if err := token.Fold(kek, resp); err != nil {
			return nil, nil, err
		}
	}
	return salt, kek, nil
}

// unwrapDEK unwraps a slot's DEK under kek, translating a wrap-integrity
// failure into the same ErrBadCredentials a wrong password produces, per
// §4.6 step 4 ("indistinguishable from wrong password by design").
func unwrapDEK(p crypto.Provider, kek, wrapped []byte) ([]byte, error) {
	dek, err := p.Unwrap(kek, wrapped)
	if err != nil {
		return nil, vaulterr.ErrBadCredentials
	}
	return dek, nil
}
