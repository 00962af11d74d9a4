package vaultio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomPrefix(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 31 % 251)
	}
	return b
}

func TestEncodeFEC_ReconstructFEC_NoCorruption(t *testing.T) {
	prefix := randomPrefix(1000)
	trailer, err := EncodeFEC(prefix, 4)
	require.NoError(t, err)

	got, err := ReconstructFEC(prefix, trailer, len(prefix))
	require.NoError(t, err)
	require.True(t, bytes.Equal(prefix, got))
}

func TestEncodeFEC_ReconstructFEC_RecoversSingleShardCorruption(t *testing.T) {
	prefix := randomPrefix(1000)
	trailer, err := EncodeFEC(prefix, 4)
	require.NoError(t, err)

	corrupted := append([]byte(nil), prefix...)
	corrupted[0] ^= 0xFF

	got, err := ReconstructFEC(corrupted, trailer, len(prefix))
	require.NoError(t, err)
	require.True(t, bytes.Equal(prefix, got))
}

func TestEncodeFEC_ReconstructFEC_ExceedsCorrectionCapacity(t *testing.T) {
	prefix := randomPrefix(1000)
	trailer, err := EncodeFEC(prefix, 2)
	require.NoError(t, err)

	corrupted := append([]byte(nil), prefix...)
	// Corrupt more shards than 2 parity shards can recover.
	for _, off := range []int{0, 252, 504, 756} {
		if off < len(corrupted) {
			corrupted[off] ^= 0xFF
		}
	}

	_, err = ReconstructFEC(corrupted, trailer, len(prefix))
	require.Error(t, err)
}

func TestReconstructFEC_RejectsBadMarker(t *testing.T) {
	_, err := ReconstructFEC([]byte("abc"), []byte("not-a-trailer"), 3)
	require.Error(t, err)
}
