package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

func TestGroups(t *testing.T) {
	ctx := context.Background()

	t.Run("add to missing group fails", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		err := engine.AddToGroup(ctx, "alice", "ghosts")
		assert.ErrorIs(t, err, authz.ErrGroupNotFound)
	})

	t.Run("membership is idempotent", func(t *testing.T) {
		engine, _ := newTestEngine(1000)
		require.NoError(t, engine.CreateGroup(ctx, "auditors", authz.NewPermissionSet(authz.PermissionReadAnyRecord)))

		require.NoError(t, engine.AddToGroup(ctx, "alice", "auditors"))
		require.NoError(t, engine.AddToGroup(ctx, "alice", "auditors"))

		groups, err := engine.UserGroups(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"auditors"}, groups)
	})

	t.Run("remove absent membership is not an error", func(t *testing.T) {
		engine, _ := newTestEngine(1000)

		assert.NoError(t, engine.RemoveFromGroup(ctx, "alice", "auditors"))
	})

	t.Run("dangling membership contributes nothing", func(t *testing.T) {
		engine, _ := newTestEngine(1000)
		require.NoError(t, engine.CreateGroup(ctx, "auditors", authz.NewPermissionSet(authz.PermissionReadAnyRecord)))
		require.NoError(t, engine.AddToGroup(ctx, "alice", "auditors"))

		require.NoError(t, engine.DeleteGroup(ctx, "auditors"))

		// Membership survives the group.
		groups, err := engine.UserGroups(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"auditors"}, groups)

		permissions, err := engine.GetGroupPermissions(ctx, "auditors")
		require.NoError(t, err)
		assert.True(t, permissions.Empty())

		allowed, err := engine.HasPermission(ctx, "alice", authz.PermissionReadAnyRecord)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("create replaces permissions", func(t *testing.T) {
		engine, _ := newTestEngine(1000)
		require.NoError(t, engine.CreateGroup(ctx, "ops", authz.NewPermissionSet(authz.PermissionReadAnyRecord)))
		require.NoError(t, engine.CreateGroup(ctx, "ops", authz.NewPermissionSet(authz.PermissionWriteRecord)))

		permissions, err := engine.GetGroupPermissions(ctx, "ops")
		require.NoError(t, err)
		assert.False(t, permissions.Has(authz.PermissionReadAnyRecord))
		assert.True(t, permissions.Has(authz.PermissionWriteRecord))
	})
}
