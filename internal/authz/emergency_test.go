package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

func TestEmergencyAccess_Lifecycle(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(1000)

	id, err := engine.GrantEmergencyAccess(ctx, "dr-grey", "patient-1", authz.EmergencyLifeThreatening,
		"patient unresponsive on arrival", 600)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	active, err := engine.HasActiveEmergencyAccess(ctx, "patient-1", "dr-grey")
	require.NoError(t, err)
	assert.True(t, active)

	// Another requester has no standing.
	active, err = engine.HasActiveEmergencyAccess(ctx, "patient-1", "dr-house")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, engine.RevokeEmergencyAccess(ctx, "admin", id))

	active, err = engine.HasActiveEmergencyAccess(ctx, "patient-1", "dr-grey")
	require.NoError(t, err)
	assert.False(t, active)

	trail, err := engine.EmergencyAuditTrail(ctx, id)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "granted", trail[0].Action)
	assert.Equal(t, "dr-grey", trail[0].Actor)
	assert.Equal(t, "revoked", trail[1].Action)
	assert.Equal(t, "admin", trail[1].Actor)
}

func TestGrantEmergencyAccess_RequiresAttestation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(1000)

	_, err := engine.GrantEmergencyAccess(ctx, "dr-grey", "patient-1", authz.EmergencyUnconscious, "", 600)
	require.Error(t, err)

	var authzErr *authz.Error
	require.ErrorAs(t, err, &authzErr)
	assert.Equal(t, authz.ErrorTypeInvalidInput, authzErr.Type)
}

func TestRevokeEmergencyAccess_NotFound(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(1000)

	err := engine.RevokeEmergencyAccess(ctx, "admin", 42)
	assert.ErrorIs(t, err, authz.ErrAccessNotFound)
}

func TestExpireEmergencyAccesses(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(1000)

	expiring, err := engine.GrantEmergencyAccess(ctx, "dr-grey", "patient-1", authz.EmergencySurgical,
		"ruptured globe, OR now", 600)
	require.NoError(t, err)
	lasting, err := engine.GrantEmergencyAccess(ctx, "dr-house", "patient-1", authz.EmergencyUnconscious,
		"found unresponsive", 10000)
	require.NoError(t, err)

	clock.now = 2000
	expired, err := engine.ExpireEmergencyAccesses(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// Expired grants stay visible with status Expired; the sweep is
	// idempotent.
	accesses, err := engine.PatientEmergencyAccesses(ctx, "patient-1")
	require.NoError(t, err)
	require.Len(t, accesses, 2)
	statuses := map[uint64]authz.EmergencyStatus{}
	for _, access := range accesses {
		statuses[access.ID] = access.Status
	}
	assert.Equal(t, authz.EmergencyExpired, statuses[expiring])
	assert.Equal(t, authz.EmergencyActive, statuses[lasting])

	expired, err = engine.ExpireEmergencyAccesses(ctx, "patient-1")
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	trail, err := engine.EmergencyAuditTrail(ctx, expiring)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "expired", trail[1].Action)
	assert.Equal(t, "system", trail[1].Actor)
}

func TestHasActiveEmergencyAccess_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	engine, clock := newTestEngine(1000)

	_, err := engine.GrantEmergencyAccess(ctx, "dr-grey", "patient-1", authz.EmergencyMassCasualties,
		"triage overflow", 600)
	require.NoError(t, err)

	// Past expiry the grant reads as inactive even before any sweep runs.
	clock.now = 1600
	active, err := engine.HasActiveEmergencyAccess(ctx, "patient-1", "dr-grey")
	require.NoError(t, err)
	assert.False(t, active)
}
