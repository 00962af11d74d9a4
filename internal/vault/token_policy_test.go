package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/token"
)

// withFixedDevice swaps newDevice for a deterministic in-memory HMAC device
// for the duration of a test, standing in for the real PC/SC reader (§4.8).
func withFixedDevice(t *testing.T, secret []byte) {
	t.Helper()
	original := newDevice
	newDevice = func() (token.HMACDevice, error) {
		return token.NewHMACSHA1Device(secret), nil
	}
	t.Cleanup(func() { newDevice = original })
}

func tokenPolicyWithChallenge() policy.SecurityPolicy {
	challenge := make([]byte, policy.ChallengeLength)
	for i := range challenge {
		challenge[i] = byte(i)
	}
	pol := policy.NewDefault()
	pol.RequireToken = true
	pol.TokenChallenge = challenge
	return pol
}

// S6: token-gated create and open use the same device family and fold the
// same response into the KEK on both ends, so a correct password plus a
// working device succeeds.
func TestCreateV2_OpenV2_WithRequiredToken(t *testing.T) {
	withFixedDevice(t, []byte("device-secret-shared-with-the-policy-challenge"))

	path := vaultPath(t)
	pol := tokenPolicyWithChallenge()
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), pol))

	s, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.NoError(t, err)
	defer s.Close()

	accounts, err := s.ListAccounts(nil)
	require.NoError(t, err)
	require.Empty(t, accounts)
}

// A different physical device (different HMAC secret) folds a different
// response into the KEK, unwrapping to garbage and failing authentication
// exactly like a wrong password would.
func TestOpenV2_WithRequiredToken_WrongDeviceFailsAuthentication(t *testing.T) {
	path := vaultPath(t)
	pol := tokenPolicyWithChallenge()

	withFixedDevice(t, []byte("device-secret-shared-with-the-policy-challenge"))
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), pol))

	original := newDevice
	newDevice = func() (token.HMACDevice, error) {
		return token.NewHMACSHA1Device([]byte("a completely different device secret")), nil
	}
	t.Cleanup(func() { newDevice = original })

	_, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.Error(t, err)
}

func TestOpenV2_WithRequiredToken_DeviceUnavailablePropagatesError(t *testing.T) {
	path := vaultPath(t)
	pol := tokenPolicyWithChallenge()

	withFixedDevice(t, []byte("device-secret-shared-with-the-policy-challenge"))
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), pol))

	original := newDevice
	wantErr := errors.New("no reader attached")
	newDevice = func() (token.HMACDevice, error) { return nil, wantErr }
	t.Cleanup(func() { newDevice = original })

	_, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.ErrorIs(t, err, wantErr)
}
