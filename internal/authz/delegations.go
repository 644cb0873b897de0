package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// DelegateRole upserts a full-role delegation from delegator to delegatee
// and records the delegator in the delegatee's reverse index. The
// delegation confers only the base permissions of role; the delegator's
// overlays and group memberships are never carried across.
func (e *Engine) DelegateRole(ctx context.Context, delegator, delegatee string, role authz.Role, expiresAt int64) error {
	delegation := authz.Delegation{
		Delegator: delegator,
		Delegatee: delegatee,
		Role:      role,
		ExpiresAt: expiresAt,
	}

	if err := e.store.Set(ctx, delegationKey(delegator, delegatee), &delegation); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store delegation", err)
	}
	if err := e.appendDelegatorIndex(ctx, delegatee, delegator); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordDelegationChange("full", 1)
	}
	e.logger.WithFields(logrus.Fields{
		"delegator":  delegator,
		"delegatee":  delegatee,
		"role":       role.String(),
		"expires_at": expiresAt,
	}).Info("Role delegated")

	return nil
}

// DelegatePermissions upserts a scoped delegation conferring exactly the
// listed permissions. An empty set is a no-op.
func (e *Engine) DelegatePermissions(ctx context.Context, delegator, delegatee string, permissions authz.PermissionSet, expiresAt int64) error {
	if permissions.Empty() {
		return nil
	}

	delegation := authz.ScopedDelegation{
		Delegator:   delegator,
		Delegatee:   delegatee,
		Permissions: permissions,
		ExpiresAt:   expiresAt,
	}

	if err := e.store.Set(ctx, scopedDelegationKey(delegator, delegatee), &delegation); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store scoped delegation", err)
	}
	if err := e.appendDelegatorIndex(ctx, delegatee, delegator); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordDelegationChange("scoped", 1)
	}
	e.logger.WithFields(logrus.Fields{
		"delegator":  delegator,
		"delegatee":  delegatee,
		"expires_at": expiresAt,
	}).Info("Permissions delegated")

	return nil
}

// GetActiveDelegation returns the live full-role delegation for the pair,
// if any. Expired delegations are treated as absent.
func (e *Engine) GetActiveDelegation(ctx context.Context, delegator, delegatee string) (*authz.Delegation, bool, error) {
	var delegation authz.Delegation
	found, err := e.store.Get(ctx, delegationKey(delegator, delegatee), &delegation)
	if err != nil {
		return nil, false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read delegation", err)
	}
	if !found || !delegation.Active(e.now()) {
		return nil, false, nil
	}
	return &delegation, true, nil
}

// GetActiveScopedDelegation returns the live scoped delegation for the
// pair, if any.
func (e *Engine) GetActiveScopedDelegation(ctx context.Context, delegator, delegatee string) (*authz.ScopedDelegation, bool, error) {
	var delegation authz.ScopedDelegation
	found, err := e.store.Get(ctx, scopedDelegationKey(delegator, delegatee), &delegation)
	if err != nil {
		return nil, false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read scoped delegation", err)
	}
	if !found || !delegation.Active(e.now()) {
		return nil, false, nil
	}
	return &delegation, true, nil
}

// Delegators enumerates who currently delegates to delegatee, in original
// insertion order. Index entries are never removed on expiry; stale ones
// are filtered here.
func (e *Engine) Delegators(ctx context.Context, delegatee string) ([]string, error) {
	var index []string
	if _, err := e.store.Get(ctx, delegatorIndexKey(delegatee), &index); err != nil {
		return nil, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read delegator index", err)
	}

	active := make([]string, 0, len(index))
	for _, delegator := range index {
		if _, found, err := e.GetActiveDelegation(ctx, delegator, delegatee); err != nil {
			return nil, err
		} else if found {
			active = append(active, delegator)
			continue
		}
		if _, found, err := e.GetActiveScopedDelegation(ctx, delegator, delegatee); err != nil {
			return nil, err
		} else if found {
			active = append(active, delegator)
		}
	}
	return active, nil
}

// appendDelegatorIndex adds delegator to the delegatee's reverse index,
// deduplicating by value and preserving insertion order.
func (e *Engine) appendDelegatorIndex(ctx context.Context, delegatee, delegator string) error {
	var index []string
	if _, err := e.store.Get(ctx, delegatorIndexKey(delegatee), &index); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read delegator index", err)
	}

	for _, existing := range index {
		if existing == delegator {
			return nil
		}
	}
	index = append(index, delegator)

	if err := e.store.Set(ctx, delegatorIndexKey(delegatee), index); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store delegator index", err)
	}
	return nil
}
