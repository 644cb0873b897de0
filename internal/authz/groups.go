package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// CreateGroup creates or replaces the named ACL group.
func (e *Engine) CreateGroup(ctx context.Context, name string, permissions authz.PermissionSet) error {
	group := authz.AclGroup{Name: name, Permissions: permissions}

	if err := e.store.Set(ctx, groupKey(name), &group); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store acl group", err)
	}

	e.logger.WithField("group", name).Info("ACL group created")
	return nil
}

// DeleteGroup removes the named group. Membership records referencing it
// are left in place; they simply contribute no permissions afterwards.
func (e *Engine) DeleteGroup(ctx context.Context, name string) error {
	if err := e.store.Delete(ctx, groupKey(name)); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to delete acl group", err)
	}

	e.logger.WithField("group", name).Info("ACL group deleted")
	return nil
}

// AddToGroup appends group to the user's membership list. The group must
// exist at call time; membership is idempotent.
func (e *Engine) AddToGroup(ctx context.Context, user, group string) error {
	exists, err := e.store.Has(ctx, groupKey(group))
	if err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to check acl group", err)
	}
	if !exists {
		return authz.ErrGroupNotFound
	}

	var groups []string
	if _, err := e.store.Get(ctx, userGroupsKey(user), &groups); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read group memberships", err)
	}

	for _, existing := range groups {
		if existing == group {
			return nil
		}
	}
	groups = append(groups, group)

	if err := e.store.Set(ctx, userGroupsKey(user), groups); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store group memberships", err)
	}

	e.logger.WithFields(logrus.Fields{"user": user, "group": group}).Info("User added to group")
	return nil
}

// RemoveFromGroup removes group from the user's membership list. Removing
// an absent membership is not an error.
func (e *Engine) RemoveFromGroup(ctx context.Context, user, group string) error {
	var groups []string
	if _, err := e.store.Get(ctx, userGroupsKey(user), &groups); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read group memberships", err)
	}

	filtered := groups[:0]
	for _, existing := range groups {
		if existing != group {
			filtered = append(filtered, existing)
		}
	}
	if len(filtered) == len(groups) {
		return nil
	}

	if err := e.store.Set(ctx, userGroupsKey(user), filtered); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store group memberships", err)
	}

	e.logger.WithFields(logrus.Fields{"user": user, "group": group}).Info("User removed from group")
	return nil
}

// GetGroupPermissions returns the named group's permission set, or the
// empty set when the group does not exist. A dangling membership
// reference is not an error.
func (e *Engine) GetGroupPermissions(ctx context.Context, name string) (authz.PermissionSet, error) {
	var group authz.AclGroup
	found, err := e.store.Get(ctx, groupKey(name), &group)
	if err != nil {
		return 0, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read acl group", err)
	}
	if !found {
		return 0, nil
	}
	return group.Permissions, nil
}

// UserGroups returns the groups the user currently belongs to.
func (e *Engine) UserGroups(ctx context.Context, user string) ([]string, error) {
	var groups []string
	if _, err := e.store.Get(ctx, userGroupsKey(user), &groups); err != nil {
		return nil, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read group memberships", err)
	}
	return groups, nil
}
