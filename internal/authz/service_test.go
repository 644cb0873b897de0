package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
	"github.com/Timi16/Teye-Contracts/pkg/logger"
)

func newTestService(now int64) (*Service, *fakeClock) {
	engine, clock := newTestEngine(now)
	return NewService(engine, logger.New("panic")), clock
}

// seedAdmin bootstraps an administrator directly through the engine, the
// way a deployment seeds its first admin outside the guarded surface.
func seedAdmin(t *testing.T, s *Service, user string) {
	t.Helper()
	require.NoError(t, s.Engine().AssignRole(context.Background(), user, authz.RoleAdmin, 0))
}

func TestService_RoleMutationsRequireManageUsers(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(1000)
	seedAdmin(t, service, "root")

	t.Run("admin can assign", func(t *testing.T) {
		require.NoError(t, service.AssignRole(ctx, "root", "alice", authz.RoleOptometrist, 0))

		allowed, err := service.Engine().HasPermission(ctx, "alice", authz.PermissionWriteRecord)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("unprivileged caller is rejected", func(t *testing.T) {
		require.NoError(t, service.AssignRole(ctx, "root", "mallory", authz.RolePatient, 0))

		err := service.AssignRole(ctx, "mallory", "mallory", authz.RoleAdmin, 0)
		assert.ErrorIs(t, err, authz.ErrUnauthorized)

		err = service.GrantCustomPermission(ctx, "mallory", "mallory", authz.PermissionSystemAdmin)
		assert.ErrorIs(t, err, authz.ErrUnauthorized)
	})

	t.Run("staff holds ManageUsers from its base set", func(t *testing.T) {
		require.NoError(t, service.AssignRole(ctx, "root", "desk", authz.RoleStaff, 0))

		require.NoError(t, service.AssignRole(ctx, "desk", "walkin", authz.RolePatient, 0))
	})
}

func TestService_AccessAdministrationRequiresManageAccess(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(1000)
	seedAdmin(t, service, "root")
	require.NoError(t, service.AssignRole(ctx, "root", "desk", authz.RoleStaff, 0))

	// Staff has ManageUsers but not ManageAccess.
	err := service.CreateGroup(ctx, "desk", "auditors", authz.NewPermissionSet(authz.PermissionReadAnyRecord))
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	err = service.SetUserCredential(ctx, "desk", "alice", authz.CredentialMedicalLicense)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	err = service.SetRecordSensitivity(ctx, "desk", 7, authz.SensitivityRestricted)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	err = service.CreateAccessPolicy(ctx, "desk", authz.AccessPolicy{ID: "p", Enabled: true})
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	require.NoError(t, service.CreateGroup(ctx, "root", "auditors", authz.NewPermissionSet(authz.PermissionReadAnyRecord)))
	require.NoError(t, service.AddToGroup(ctx, "root", "alice", "auditors"))
}

func TestService_DelegationsNeedOnlyTheDelegator(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(1000)
	seedAdmin(t, service, "root")
	require.NoError(t, service.AssignRole(ctx, "root", "patient", authz.RolePatient, 0))

	// Even a patient may delegate; what the delegation is worth is decided
	// at resolution time.
	require.NoError(t, service.DelegateRole(ctx, "patient", "helper", authz.RoleOptometrist, 0))

	allowed, err := service.Engine().HasDelegatedPermission(ctx, "patient", "helper", authz.PermissionWriteRecord)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestService_ConsentActsOnCallerAsPatient(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(1000)

	require.NoError(t, service.GrantConsent(ctx, "patient", "dr-grey", authz.ConsentTreatment, 600))

	active, err := service.Engine().HasActiveConsent(ctx, "patient", "dr-grey")
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, service.RevokeConsent(ctx, "patient", "dr-grey"))
	active, err = service.Engine().HasActiveConsent(ctx, "patient", "dr-grey")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestService_EmergencyRevocationIsGuarded(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(1000)
	seedAdmin(t, service, "root")
	require.NoError(t, service.AssignRole(ctx, "root", "dr-grey", authz.RolePatient, 0))

	id, err := service.GrantEmergencyAccess(ctx, "dr-grey", "patient-1", authz.EmergencyLifeThreatening,
		"unresponsive on arrival", 600)
	require.NoError(t, err)

	err = service.RevokeEmergencyAccess(ctx, "dr-grey", id)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)

	require.NoError(t, service.RevokeEmergencyAccess(ctx, "root", id))

	_, err = service.ExpireEmergencyAccesses(ctx, "dr-grey", "patient-1")
	assert.ErrorIs(t, err, authz.ErrUnauthorized)
}
