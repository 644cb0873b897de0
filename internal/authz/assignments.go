package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// AssignRole replaces any existing assignment for user wholesale. Custom
// grants and revokes are reset to empty; overlays must be reapplied after
// a reassignment. expiresAt of zero means the assignment never expires.
func (e *Engine) AssignRole(ctx context.Context, user string, role authz.Role, expiresAt int64) error {
	assignment := authz.RoleAssignment{
		Role:      role,
		ExpiresAt: expiresAt,
	}

	if err := e.store.Set(ctx, assignmentKey(user), &assignment); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store role assignment", err)
	}

	e.logger.WithFields(logrus.Fields{
		"user":       user,
		"role":       role.String(),
		"expires_at": expiresAt,
	}).Info("Role assigned")

	return nil
}

// GetActiveAssignment returns the user's assignment if one exists and has
// not expired. Expired assignments are treated as absent, not deleted; a
// later AssignRole still replaces them.
func (e *Engine) GetActiveAssignment(ctx context.Context, user string) (*authz.RoleAssignment, bool, error) {
	var assignment authz.RoleAssignment
	found, err := e.store.Get(ctx, assignmentKey(user), &assignment)
	if err != nil {
		return nil, false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read role assignment", err)
	}
	if !found || !assignment.Active(e.now()) {
		return nil, false, nil
	}
	return &assignment, true, nil
}

// GrantCustomPermission adds permission to the user's custom grants,
// removing it from custom revokes first so the two sets stay disjoint.
// Fails with ErrNoActiveAssignment when the user has no live assignment.
func (e *Engine) GrantCustomPermission(ctx context.Context, user string, permission authz.Permission) error {
	return e.mutateOverlay(ctx, user, "custom_grant", permission, func(a *authz.RoleAssignment) {
		a.CustomRevokes = a.CustomRevokes.Remove(permission)
		a.CustomGrants = a.CustomGrants.Add(permission)
	})
}

// RevokeCustomPermission is the symmetric operation: permission moves out
// of custom grants and into custom revokes.
func (e *Engine) RevokeCustomPermission(ctx context.Context, user string, permission authz.Permission) error {
	return e.mutateOverlay(ctx, user, "custom_revoke", permission, func(a *authz.RoleAssignment) {
		a.CustomGrants = a.CustomGrants.Remove(permission)
		a.CustomRevokes = a.CustomRevokes.Add(permission)
	})
}

func (e *Engine) mutateOverlay(ctx context.Context, user, action string, permission authz.Permission, apply func(*authz.RoleAssignment)) error {
	assignment, found, err := e.GetActiveAssignment(ctx, user)
	if err != nil {
		return err
	}
	if !found {
		return authz.ErrNoActiveAssignment
	}

	apply(assignment)

	if err := e.store.Set(ctx, assignmentKey(user), assignment); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store role assignment", err)
	}

	e.logger.WithFields(logrus.Fields{
		"user":       user,
		"action":     action,
		"permission": permission.String(),
	}).Info("Permission overlay updated")

	return nil
}
