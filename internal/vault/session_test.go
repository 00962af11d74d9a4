package vault

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tjdeveng/keeptower/internal/policy"
	"github.com/tjdeveng/keeptower/internal/vaulterr"
)

func vaultPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "v.vault")
}

// S1: create and reopen.
func TestCreateV2_OpenV2_RoundTrip(t *testing.T) {
	path := vaultPath(t)
	pol := policy.NewDefault()
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), pol))

	s, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertAccount(AccountRecord{ID: RecordID{1}, Name: "mail", Username: "a@b"}))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	s2, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.NoError(t, err)
	defer s2.Close()

	accounts, err := s2.ListAccounts(nil)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "mail", accounts[0].Name)
}

// S2: wrong password.
func TestOpenV2_WrongPassword(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), policy.NewDefault()))

	start := time.Now()
	_, err := OpenV2(path, "alice", []byte("wrongpassword"))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, vaulterr.ErrBadCredentials)
	require.Greater(t, elapsed, 15*time.Millisecond)
}

func TestOpenV2_UnknownUser(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), policy.NewDefault()))

	_, err := OpenV2(path, "nobody", []byte("whatever123"))
	require.ErrorIs(t, err, vaulterr.ErrUnknownUser)
}

func TestCreateV2_RejectsExistingFile(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), policy.NewDefault()))

	err := CreateV2(path, "alice", []byte("correcthorsebatterystaple"), policy.NewDefault())
	require.Error(t, err)
}

func TestCreateV1_OpenV1_RoundTrip(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV1(path, []byte("Correct!Horse123")))

	s, err := OpenV1(path, []byte("Correct!Horse123"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertAccount(AccountRecord{ID: RecordID{1}, Name: "bank"}))
	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	s2, err := OpenV1(path, []byte("Correct!Horse123"))
	require.NoError(t, err)
	defer s2.Close()

	accounts, err := s2.ListAccounts(nil)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
}

func TestSave_AfterClose_ReturnsErrSessionClosed(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV2(path, "alice", []byte("correcthorsebatterystaple"), policy.NewDefault()))

	s, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Save(), ErrSessionClosed)
}

// S5: migration, exercised at the facade level.
func TestMigrateToV2_FromOpenV1Session(t *testing.T) {
	path := vaultPath(t)
	require.NoError(t, CreateV1(path, []byte("Correct!Horse123")))

	s, err := OpenV1(path, []byte("Correct!Horse123"))
	require.NoError(t, err)
	require.NoError(t, s.UpsertAccount(AccountRecord{ID: RecordID{1}, Name: "mail"}))
	require.NoError(t, s.Save())

	pol := policy.NewDefault()
	require.NoError(t, s.MigrateToV2("alice", []byte("correcthorsebatterystaple"), pol))

	accounts, err := s.ListAccounts(nil)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	require.NoError(t, s.Save())
	require.NoError(t, s.Close())

	s2, err := OpenV2(path, "alice", []byte("correcthorsebatterystaple"))
	require.NoError(t, err)
	defer s2.Close()
	accounts2, err := s2.ListAccounts(nil)
	require.NoError(t, err)
	require.Len(t, accounts2, 1)
}
