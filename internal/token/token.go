// Package token implements the hardware-token second-factor protocol
// (component C8): an asynchronous, cancellable HMAC challenge-response and
// credential-creation flow layered over a PC/SC smartcard transport.
package token

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"

	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

// Algorithm identifies the keyed algorithm a token computes its response
// with (§6.4).
type Algorithm uint8

const (
	// AlgoHMACSHA1 is the only algorithm current devices implement.
	AlgoHMACSHA1 Algorithm = 1
	// AlgoHMACSHA256 is recognised but unimplemented pending device
	// support; selecting it returns ErrProviderUnavailable.
	AlgoHMACSHA256 Algorithm = 2
)

// ChallengeLength matches policy.ChallengeLength; duplicated here as a
// plain constant so this package does not need to import internal/policy
// just for one number.
const ChallengeLength = 64

// ResponseLength is the raw HMAC-SHA1 output size.
const ResponseLength = 20

// Card abstracts the physical PC/SC transport so tests can substitute an
// in-memory fake without a real reader attached.
type Card interface {
	Transmit(apdu []byte) ([]byte, error)
}

// HMACDevice exposes only the keyed challenge-response operation a token
// performs; the PC/SC-backed implementation frames this as an APDU over a
// Card, and a test double implements it directly against crypto/hmac.
type HMACDevice interface {
	Respond(challenge []byte) ([]byte, error)
}

// Fold XOR-folds a 20-byte HMAC-SHA1 response into a 32-byte KEK-sized
// buffer: the response repeats to fill 32 bytes, then is XORed byte-wise
// into kek in place (§4.6, §4.8).
func Fold(kek, response []byte) error {
	if len(response) != ResponseLength {
		return vaulterr.ErrCorrupted
	}
	for i := range kek {
		kek[i] ^= response[i%ResponseLength]
	}
	return nil
}

// hmacSHA1Device computes responses directly with crypto/hmac, used by
// tests and by any transport that exposes a raw keyed-HMAC primitive
// instead of framing it as an APDU.
type hmacSHA1Device struct {
	secret []byte
}

// NewHMACSHA1Device returns an HMACDevice backed directly by crypto/hmac,
// for tests and non-PC/SC transports.
func NewHMACSHA1Device(secret []byte) HMACDevice {
	return &hmacSHA1Device{secret: append([]byte(nil), secret...)}
}

func (d *hmacSHA1Device) Respond(challenge []byte) ([]byte, error) {
	mac := hmac.New(sha1.New, d.secret)
	mac.Write(challenge)
	return mac.Sum(nil), nil
}

// ChallengeResponseAsync runs dev.Respond(challenge) on a worker goroutine
// and delivers the result to cb on the caller's own goroutine via the
// returned drain function, which blocks until either the operation
// completes or ctx is done. At most one operation may be in flight per
// Device; a second call while busy reports ErrBusy immediately.
func ChallengeResponseAsync(ctx context.Context, d *Device, challenge []byte) (*Operation, error) {
	return d.start(ctx, func() (tokenResult, error) {
		resp, err := d.device.Respond(challenge)
		if err != nil {
			return tokenResult{}, &vaulterr.DeviceError{Detail: err.Error()}
		}
		return tokenResult{response: resp}, nil
	})
}

// CreateCredentialAsync runs the device's credential-creation step (the
// device emitting the response it will use for every subsequent challenge
// issued against this vault's stored challenge) on a worker goroutine.
func CreateCredentialAsync(ctx context.Context, d *Device, challenge []byte) (*Operation, error) {
	return ChallengeResponseAsync(ctx, d, challenge)
}
