package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

func TestHasPermission_Precedence(t *testing.T) {
	ctx := context.Background()

	t.Run("revoke dominates role and grants and groups", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.AssignRole(ctx, "alice", authz.RoleAdmin, 0))
		require.NoError(t, engine.GrantCustomPermission(ctx, "alice", authz.PermissionWriteRecord))
		require.NoError(t, engine.CreateGroup(ctx, "writers", authz.NewPermissionSet(authz.PermissionWriteRecord)))
		require.NoError(t, engine.AddToGroup(ctx, "alice", "writers"))

		require.NoError(t, engine.RevokeCustomPermission(ctx, "alice", authz.PermissionWriteRecord))

		allowed, err := engine.HasPermission(ctx, "alice", authz.PermissionWriteRecord)
		require.NoError(t, err)
		assert.False(t, allowed, "explicit revoke must override admin role, prior grant, and group membership")
	})

	t.Run("custom grant beats empty base set", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.AssignRole(ctx, "bob", authz.RolePatient, 0))
		require.NoError(t, engine.GrantCustomPermission(ctx, "bob", authz.PermissionReadAnyRecord))

		allowed, err := engine.HasPermission(ctx, "bob", authz.PermissionReadAnyRecord)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("base role supplies permissions without overlays", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.AssignRole(ctx, "carol", authz.RoleOptometrist, 0))

		allowed, err := engine.HasPermission(ctx, "carol", authz.PermissionWriteRecord)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = engine.HasPermission(ctx, "carol", authz.PermissionSystemAdmin)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("groups are consulted last", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		// Patient role has an empty base set; ReadAnyRecord must come
		// from the Auditors group alone.
		require.NoError(t, engine.AssignRole(ctx, "dave", authz.RolePatient, 0))
		require.NoError(t, engine.CreateGroup(ctx, "Auditors", authz.NewPermissionSet(authz.PermissionReadAnyRecord)))
		require.NoError(t, engine.AddToGroup(ctx, "dave", "Auditors"))

		allowed, err := engine.HasPermission(ctx, "dave", authz.PermissionReadAnyRecord)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("unknown user is denied", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		allowed, err := engine.HasPermission(ctx, "nobody", authz.PermissionReadAnyRecord)
		require.NoError(t, err)
		assert.False(t, allowed)
	})
}

func TestHasPermission_GrantThenRevokeEqualsRevoke(t *testing.T) {
	ctx := context.Background()

	for _, permission := range []authz.Permission{
		authz.PermissionReadAnyRecord,
		authz.PermissionWriteRecord,
		authz.PermissionManageAccess,
	} {
		grantFirst, _ := newTestEngine(1000)
		require.NoError(t, grantFirst.AssignRole(ctx, "u", authz.RoleAdmin, 0))
		require.NoError(t, grantFirst.GrantCustomPermission(ctx, "u", permission))
		require.NoError(t, grantFirst.RevokeCustomPermission(ctx, "u", permission))

		revokeOnly, _ := newTestEngine(1000)
		require.NoError(t, revokeOnly.AssignRole(ctx, "u", authz.RoleAdmin, 0))
		require.NoError(t, revokeOnly.RevokeCustomPermission(ctx, "u", permission))

		a, err := grantFirst.HasPermission(ctx, "u", permission)
		require.NoError(t, err)
		b, err := revokeOnly.HasPermission(ctx, "u", permission)
		require.NoError(t, err)
		assert.Equal(t, b, a, "grant-then-revoke must equal revoke-only for %s", permission)
		assert.False(t, a)
	}
}

func TestHasPermission_ExpiryBoundary(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(1000)

	require.NoError(t, engine.AssignRole(ctx, "erin", authz.RoleOphthalmologist, 2000))

	allowed, err := engine.HasPermission(ctx, "erin", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.True(t, allowed, "before expiry")

	clock.now = 2000
	allowed, err = engine.HasPermission(ctx, "erin", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.False(t, allowed, "at the expiry instant the assignment is no longer active")

	clock.now = 3000
	allowed, err = engine.HasPermission(ctx, "erin", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.False(t, allowed, "after expiry")
}

func TestHasPermission_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(1000)

	require.NoError(t, engine.AssignRole(ctx, "u", authz.RoleOptometrist, 0))

	allowed, err := engine.HasPermission(ctx, "u", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = engine.HasPermission(ctx, "u", authz.PermissionSystemAdmin)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, engine.RevokeCustomPermission(ctx, "u", authz.PermissionWriteRecord))
	allowed, err = engine.HasPermission(ctx, "u", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.False(t, allowed)

	require.NoError(t, engine.GrantCustomPermission(ctx, "u", authz.PermissionWriteRecord))
	allowed, err = engine.HasPermission(ctx, "u", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHasDelegatedPermission(t *testing.T) {
	ctx := context.Background()

	t.Run("full-role delegation confers base permissions until expiry", func(t *testing.T) {
		engine, clock := newTestEngine(1000)

		require.NoError(t, engine.DelegateRole(ctx, "a", "b", authz.RoleOptometrist, 5000))

		allowed, err := engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionManageAccess)
		require.NoError(t, err)
		assert.True(t, allowed)

		clock.now = 5000
		allowed, err = engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionManageAccess)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("full-role delegation never exposes custom grants", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		// SystemAdmin is a custom grant on the delegator, outside the
		// Staff base set.
		require.NoError(t, engine.AssignRole(ctx, "a", authz.RoleStaff, 0))
		require.NoError(t, engine.GrantCustomPermission(ctx, "a", authz.PermissionSystemAdmin))
		require.NoError(t, engine.DelegateRole(ctx, "a", "b", authz.RoleStaff, 0))

		allowed, err := engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionSystemAdmin)
		require.NoError(t, err)
		assert.False(t, allowed)

		allowed, err = engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionManageUsers)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("scoped delegation confers exactly its listed set", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.DelegatePermissions(ctx, "a", "b",
			authz.NewPermissionSet(authz.PermissionReadAnyRecord), 0))

		allowed, err := engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionReadAnyRecord)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionWriteRecord)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("full and scoped delegations are checked independently", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.DelegateRole(ctx, "a", "b", authz.RoleStaff, 0))
		require.NoError(t, engine.DelegatePermissions(ctx, "a", "b",
			authz.NewPermissionSet(authz.PermissionReadAnyRecord), 0))

		// ManageUsers from the Staff base set, ReadAnyRecord from the
		// scoped set; either source suffices.
		for _, permission := range []authz.Permission{authz.PermissionManageUsers, authz.PermissionReadAnyRecord} {
			allowed, err := engine.HasDelegatedPermission(ctx, "a", "b", permission)
			require.NoError(t, err)
			assert.True(t, allowed, permission.String())
		}
	})

	t.Run("delegatee's own standing is irrelevant", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		require.NoError(t, engine.AssignRole(ctx, "b", authz.RoleAdmin, 0))

		allowed, err := engine.HasDelegatedPermission(ctx, "a", "b", authz.PermissionSystemAdmin)
		require.NoError(t, err)
		assert.False(t, allowed, "an admin delegatee with no delegation from a gets nothing")
	})
}
