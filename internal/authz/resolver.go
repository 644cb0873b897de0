package authz

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// HasPermission decides whether user holds permission, evaluated in strict
// precedence order with short-circuiting:
//
//  1. permission in custom revokes of an active assignment  -> false
//  2. permission in custom grants of an active assignment   -> true
//  3. permission in the base set of the assignment's role   -> true
//  4. permission in any group the user belongs to           -> true
//  5. otherwise                                             -> false
//
// Revoke dominates everything so an administrator can neutralize an
// account regardless of role or ad hoc grants; groups are additive and
// never override a targeted per-user revoke.
func (e *Engine) HasPermission(ctx context.Context, user string, permission authz.Permission) (bool, error) {
	start := time.Now()

	allowed, source, err := e.resolvePermission(ctx, user, permission)
	if err != nil {
		return false, err
	}

	if e.metrics != nil {
		e.metrics.RecordDecision("permission", permission.String(), allowed, time.Since(start))
	}
	e.logDecision(user, permission, allowed, source)

	return allowed, nil
}

func (e *Engine) resolvePermission(ctx context.Context, user string, permission authz.Permission) (bool, string, error) {
	assignment, found, err := e.GetActiveAssignment(ctx, user)
	if err != nil {
		return false, "", err
	}

	if found {
		if assignment.CustomRevokes.Has(permission) {
			return false, "custom_revoke", nil
		}
		if assignment.CustomGrants.Has(permission) {
			return true, "custom_grant", nil
		}
		if authz.BasePermissions(assignment.Role).Has(permission) {
			return true, "base_role", nil
		}
	}

	groups, err := e.UserGroups(ctx, user)
	if err != nil {
		return false, "", err
	}
	for _, group := range groups {
		permissions, err := e.GetGroupPermissions(ctx, group)
		if err != nil {
			return false, "", err
		}
		if permissions.Has(permission) {
			return true, "group", nil
		}
	}

	return false, "none", nil
}

// HasDelegatedPermission decides whether delegatee may act as delegator
// for permission. It is independent of HasPermission: the delegatee's own
// role, overlays, and groups are irrelevant. True when either the live
// full-role delegation's base set or the live scoped delegation's set
// includes the permission.
func (e *Engine) HasDelegatedPermission(ctx context.Context, delegator, delegatee string, permission authz.Permission) (bool, error) {
	start := time.Now()
	allowed := false
	source := "none"

	delegation, found, err := e.GetActiveDelegation(ctx, delegator, delegatee)
	if err != nil {
		return false, err
	}
	if found && authz.BasePermissions(delegation.Role).Has(permission) {
		allowed = true
		source = "delegated_role"
	}

	if !allowed {
		scoped, found, err := e.GetActiveScopedDelegation(ctx, delegator, delegatee)
		if err != nil {
			return false, err
		}
		if found && scoped.Permissions.Has(permission) {
			allowed = true
			source = "delegated_scope"
		}
	}

	if e.metrics != nil {
		e.metrics.RecordDecision("delegated", permission.String(), allowed, time.Since(start))
	}
	e.logDecision(delegatee, permission, allowed, source)

	return allowed, nil
}

func (e *Engine) logDecision(user string, permission authz.Permission, allowed bool, source string) {
	e.logger.WithFields(logrus.Fields{
		"decision":   true,
		"user_id":    user,
		"permission": permission.String(),
		"allowed":    allowed,
		"source":     source,
	}).Info("Authorization decision")
}
