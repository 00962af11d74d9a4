package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMarshalDocument_EmptyRoundTrip(t *testing.T) {
	enc, err := MarshalDocument(Document{})
	require.NoError(t, err)

	got, err := UnmarshalDocument(enc)
	require.NoError(t, err)
	require.Empty(t, got.Accounts)
	require.Empty(t, got.Groups)
}

func TestUnmarshalDocument_EmptyBytesIsEmptyDocument(t *testing.T) {
	got, err := UnmarshalDocument(nil)
	require.NoError(t, err)
	require.Empty(t, got.Accounts)
	require.Empty(t, got.Groups)
}

func TestMarshalDocument_RoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	groupID := ID{1}
	doc := Document{
		Accounts: []AccountRecord{
			{ID: ID{1}, Name: "mail", Username: "a@b", CreatedAt: now, ModifiedAt: now},
			{ID: ID{2}, Name: "bank", Username: "c@d", GroupID: groupID, CreatedAt: now, ModifiedAt: now},
		},
		Groups: []Group{
			{ID: groupID, Name: "finance"},
		},
	}

	enc, err := MarshalDocument(doc)
	require.NoError(t, err)

	got, err := UnmarshalDocument(enc)
	require.NoError(t, err)
	require.Len(t, got.Accounts, 2)
	require.Len(t, got.Groups, 1)
	require.Equal(t, "mail", got.Accounts[0].Name)
	require.Equal(t, groupID, got.Accounts[1].GroupID)
	require.Equal(t, "finance", got.Groups[0].Name)
}
