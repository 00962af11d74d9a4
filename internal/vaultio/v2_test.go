package vaultio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tjdeveng/keeptower/internal/crypto"
	"github.com/tjdeveng/keeptower/internal/keyslot"
	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

func newSlotTable(t *testing.T, username string, dek []byte, p crypto.Provider) (*keyslot.Table, []byte) {
	t.Helper()
	kek, err := p.RandBytes(crypto.KeyLength)
	require.NoError(t, err)
	wrapped, err := p.Wrap(kek, dek)
	require.NoError(t, err)

	tbl := keyslot.NewTable()
	_, err = tbl.AllocateSlot(keyslot.Slot{
		Active:     true,
		Username:   username,
		Salt:       make([]byte, 32),
		WrappedDEK: wrapped,
		Role:       policy.RoleAdministrator,
	})
	require.NoError(t, err)
	return tbl, kek
}

func TestWriteV2_ReadV2_RoundTrip(t *testing.T) {
	fs := NewOSFileSystem()
	p := crypto.NewDefaultProvider()
	path := filepath.Join(t.TempDir(), "v.vault")

	dek, err := p.RandBytes(crypto.KeyLength)
	require.NoError(t, err)
	tbl, _ := newSlotTable(t, "alice", dek, p)

	opts := WriteV2Options{Policy: policy.NewDefault(), Slots: tbl, DEK: dek}
	require.NoError(t, WriteV2(fs, p, path, opts, []byte("record blob")))

	doc, err := ReadV2(fs, p, path, dek)
	require.NoError(t, err)
	require.Equal(t, []byte("record blob"), doc.Plaintext)
	require.Equal(t, 1, len(doc.Header.Slots.Slots))
	require.Equal(t, "alice", doc.Header.Slots.Slots[0].Username)
}

func TestReadV2_WrongDEK(t *testing.T) {
	fs := NewOSFileSystem()
	p := crypto.NewDefaultProvider()
	path := filepath.Join(t.TempDir(), "v.vault")

	dek, _ := p.RandBytes(crypto.KeyLength)
	tbl, _ := newSlotTable(t, "alice", dek, p)
	opts := WriteV2Options{Policy: policy.NewDefault(), Slots: tbl, DEK: dek}
	require.NoError(t, WriteV2(fs, p, path, opts, []byte("blob")))

	wrongDEK, _ := p.RandBytes(crypto.KeyLength)
	_, err := ReadV2(fs, p, path, wrongDEK)
	require.ErrorIs(t, err, vaulterr.ErrBadCredentials)
}

func TestReadV2_TamperedSlotTableWithoutFEC(t *testing.T) {
	fs := NewOSFileSystem()
	p := crypto.NewDefaultProvider()
	path := filepath.Join(t.TempDir(), "v.vault")

	dek, _ := p.RandBytes(crypto.KeyLength)
	tbl, _ := newSlotTable(t, "alice", dek, p)
	opts := WriteV2Options{Policy: policy.NewDefault(), Slots: tbl, DEK: dek}
	require.NoError(t, WriteV2(fs, p, path, opts, []byte("blob")))

	raw, err := fs.ReadFile(path)
	require.NoError(t, err)
	raw[40] ^= 0xFF // inside the policy/slot region
	require.NoError(t, fs.WriteFile(path, raw, VaultPermissions))

	_, err = ReadV2(fs, p, path, dek)
	require.Error(t, err, "a single flipped header byte must never be silently accepted")
}

func TestWriteV2_WithFEC_RecoversFromHeaderCorruption(t *testing.T) {
	fs := NewOSFileSystem()
	p := crypto.NewDefaultProvider()
	path := filepath.Join(t.TempDir(), "v.vault")

	dek, _ := p.RandBytes(crypto.KeyLength)
	tbl, _ := newSlotTable(t, "alice", dek, p)
	opts := WriteV2Options{Policy: policy.NewDefault(), Slots: tbl, DEK: dek, EnableFEC: true, ParityShards: 4}
	require.NoError(t, WriteV2(fs, p, path, opts, []byte("blob")))

	raw, err := fs.ReadFile(path)
	require.NoError(t, err)
	raw[20] ^= 0xFF // corrupt a byte inside the policy block
	require.NoError(t, fs.WriteFile(path, raw, VaultPermissions))

	doc, err := ReadV2(fs, p, path, dek)
	require.NoError(t, err)
	require.Equal(t, []byte("blob"), doc.Plaintext)
}
