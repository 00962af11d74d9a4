package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowed_AdministratorCanDoEverything(t *testing.T) {
	ops := []Operation{
		OpReadOwnAccounts, OpReadAdminOnlyAccounts, OpWriteAccount,
		OpDeleteAdminOnlyDeleteRecord, OpAddRemoveUser, OpResetOtherPassword,
		OpChangeOwnPassword, OpChangePolicy, OpExportPlaintext,
	}
	for _, op := range ops {
		require.True(t, Allowed(RoleAdministrator, op))
	}
}

func TestAllowed_StandardUserRestrictions(t *testing.T) {
	require.True(t, Allowed(RoleStandard, OpReadOwnAccounts))
	require.True(t, Allowed(RoleStandard, OpWriteAccount))
	require.True(t, Allowed(RoleStandard, OpChangeOwnPassword))

	require.False(t, Allowed(RoleStandard, OpReadAdminOnlyAccounts))
	require.False(t, Allowed(RoleStandard, OpDeleteAdminOnlyDeleteRecord))
	require.False(t, Allowed(RoleStandard, OpAddRemoveUser))
	require.False(t, Allowed(RoleStandard, OpResetOtherPassword))
	require.False(t, Allowed(RoleStandard, OpChangePolicy))
	require.False(t, Allowed(RoleStandard, OpExportPlaintext))
}

func TestRole_String(t *testing.T) {
	require.Equal(t, "administrator", RoleAdministrator.String())
	require.Equal(t, "standard", RoleStandard.String())
	require.Equal(t, "unknown", Role(99).String())
}
