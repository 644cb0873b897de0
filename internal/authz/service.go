package authz

import (
	"context"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
	"github.com/Timi16/Teye-Contracts/pkg/logger"
)

// Service is the guarded mutation facade around the engine. Every
// administrative entry point authorizes the caller through the resolver
// itself before mutating state: role and overlay changes require
// ManageUsers, while group, policy, credential, sensitivity and emergency
// administration require ManageAccess. Delegations and consent need only
// the authenticated caller, who acts on their own behalf. Denials surface
// as ErrUnauthorized and every outcome is audit-logged.
//
// The caller identity is taken from the argument, not rediscovered here:
// authenticating it is the transport layer's job.
type Service struct {
	engine *Engine
	logger *logger.Logger
}

// NewService creates a new guarded facade over the engine.
func NewService(engine *Engine, log *logger.Logger) *Service {
	return &Service{engine: engine, logger: log}
}

// Engine exposes the underlying engine for read-only decision calls.
func (s *Service) Engine() *Engine {
	return s.engine
}

// authorize checks that caller holds the given permission, audit-logging
// a denial before returning ErrUnauthorized.
func (s *Service) authorize(ctx context.Context, caller string, permission authz.Permission, action, subject string) error {
	allowed, err := s.engine.HasPermission(ctx, caller, permission)
	if err != nil {
		return err
	}
	if !allowed {
		s.logger.Audit(caller, action, subject, false, map[string]interface{}{
			"required_permission": permission.String(),
		})
		return authz.ErrUnauthorized
	}
	return nil
}

// AssignRole assigns a role to user on behalf of caller.
func (s *Service) AssignRole(ctx context.Context, caller, user string, role authz.Role, expiresAt int64) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageUsers, "assign_role", user); err != nil {
		return err
	}
	if err := s.engine.AssignRole(ctx, user, role, expiresAt); err != nil {
		return err
	}
	s.logger.Audit(caller, "assign_role", user, true, map[string]interface{}{
		"role":       role.String(),
		"expires_at": expiresAt,
	})
	return nil
}

// GrantCustomPermission adds a per-user grant overlay on behalf of caller.
func (s *Service) GrantCustomPermission(ctx context.Context, caller, user string, permission authz.Permission) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageUsers, "grant_custom_permission", user); err != nil {
		return err
	}
	if err := s.engine.GrantCustomPermission(ctx, user, permission); err != nil {
		return err
	}
	s.logger.Audit(caller, "grant_custom_permission", user, true, map[string]interface{}{
		"permission": permission.String(),
	})
	return nil
}

// RevokeCustomPermission adds a per-user revoke overlay on behalf of caller.
func (s *Service) RevokeCustomPermission(ctx context.Context, caller, user string, permission authz.Permission) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageUsers, "revoke_custom_permission", user); err != nil {
		return err
	}
	if err := s.engine.RevokeCustomPermission(ctx, user, permission); err != nil {
		return err
	}
	s.logger.Audit(caller, "revoke_custom_permission", user, true, map[string]interface{}{
		"permission": permission.String(),
	})
	return nil
}

// DelegateRole delegates the caller's role to delegatee. The caller is
// the delegator; no further permission is required.
func (s *Service) DelegateRole(ctx context.Context, caller, delegatee string, role authz.Role, expiresAt int64) error {
	if err := s.engine.DelegateRole(ctx, caller, delegatee, role, expiresAt); err != nil {
		return err
	}
	s.logger.Audit(caller, "delegate_role", delegatee, true, map[string]interface{}{
		"role":       role.String(),
		"expires_at": expiresAt,
	})
	return nil
}

// DelegatePermissions delegates an explicit permission subset from the
// caller to delegatee.
func (s *Service) DelegatePermissions(ctx context.Context, caller, delegatee string, permissions authz.PermissionSet, expiresAt int64) error {
	if err := s.engine.DelegatePermissions(ctx, caller, delegatee, permissions, expiresAt); err != nil {
		return err
	}
	s.logger.Audit(caller, "delegate_permissions", delegatee, true, map[string]interface{}{
		"expires_at": expiresAt,
	})
	return nil
}

// CreateGroup creates an ACL group on behalf of caller.
func (s *Service) CreateGroup(ctx context.Context, caller, name string, permissions authz.PermissionSet) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "create_group", name); err != nil {
		return err
	}
	if err := s.engine.CreateGroup(ctx, name, permissions); err != nil {
		return err
	}
	s.logger.Audit(caller, "create_group", name, true, nil)
	return nil
}

// DeleteGroup deletes an ACL group on behalf of caller.
func (s *Service) DeleteGroup(ctx context.Context, caller, name string) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "delete_group", name); err != nil {
		return err
	}
	if err := s.engine.DeleteGroup(ctx, name); err != nil {
		return err
	}
	s.logger.Audit(caller, "delete_group", name, true, nil)
	return nil
}

// AddToGroup adds user to an ACL group on behalf of caller.
func (s *Service) AddToGroup(ctx context.Context, caller, user, group string) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "add_to_group", user); err != nil {
		return err
	}
	if err := s.engine.AddToGroup(ctx, user, group); err != nil {
		return err
	}
	s.logger.Audit(caller, "add_to_group", user, true, map[string]interface{}{"group": group})
	return nil
}

// RemoveFromGroup removes user from an ACL group on behalf of caller.
func (s *Service) RemoveFromGroup(ctx context.Context, caller, user, group string) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "remove_from_group", user); err != nil {
		return err
	}
	if err := s.engine.RemoveFromGroup(ctx, user, group); err != nil {
		return err
	}
	s.logger.Audit(caller, "remove_from_group", user, true, map[string]interface{}{"group": group})
	return nil
}

// CreateAccessPolicy registers an ABAC policy on behalf of caller.
func (s *Service) CreateAccessPolicy(ctx context.Context, caller string, policy authz.AccessPolicy) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "create_access_policy", policy.ID); err != nil {
		return err
	}
	if err := s.engine.CreateAccessPolicy(ctx, policy); err != nil {
		return err
	}
	s.logger.Audit(caller, "create_access_policy", policy.ID, true, map[string]interface{}{
		"name":    policy.Name,
		"enabled": policy.Enabled,
	})
	return nil
}

// SetPolicyEnabled toggles an ABAC policy on behalf of caller.
func (s *Service) SetPolicyEnabled(ctx context.Context, caller, id string, enabled bool) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "set_policy_enabled", id); err != nil {
		return err
	}
	if err := s.engine.SetPolicyEnabled(ctx, id, enabled); err != nil {
		return err
	}
	s.logger.Audit(caller, "set_policy_enabled", id, true, map[string]interface{}{"enabled": enabled})
	return nil
}

// SetUserCredential records a user's credential tag on behalf of caller.
func (s *Service) SetUserCredential(ctx context.Context, caller, user string, credential authz.CredentialType) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "set_user_credential", user); err != nil {
		return err
	}
	if err := s.engine.SetUserCredential(ctx, user, credential); err != nil {
		return err
	}
	s.logger.Audit(caller, "set_user_credential", user, true, map[string]interface{}{
		"credential": credential.String(),
	})
	return nil
}

// SetRecordSensitivity classifies a record on behalf of caller.
func (s *Service) SetRecordSensitivity(ctx context.Context, caller string, recordID uint64, level authz.SensitivityLevel) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "set_record_sensitivity", sensitivityKey(recordID)); err != nil {
		return err
	}
	if err := s.engine.SetRecordSensitivity(ctx, recordID, level); err != nil {
		return err
	}
	s.logger.Audit(caller, "set_record_sensitivity", sensitivityKey(recordID), true, map[string]interface{}{
		"sensitivity": level.String(),
	})
	return nil
}

// GrantConsent records the caller's consent, as patient, for grantee.
func (s *Service) GrantConsent(ctx context.Context, caller, grantee string, consentType authz.ConsentType, duration int64) error {
	if err := s.engine.GrantConsent(ctx, caller, grantee, consentType, duration); err != nil {
		return err
	}
	s.logger.Audit(caller, "grant_consent", grantee, true, map[string]interface{}{
		"consent_type": string(consentType),
	})
	return nil
}

// RevokeConsent revokes the caller's consent for grantee.
func (s *Service) RevokeConsent(ctx context.Context, caller, grantee string) error {
	if err := s.engine.RevokeConsent(ctx, caller, grantee); err != nil {
		return err
	}
	s.logger.Audit(caller, "revoke_consent", grantee, true, nil)
	return nil
}

// GrantEmergencyAccess issues a break-glass grant with the caller as
// requester. The attestation requirement substitutes for a permission
// check: the grant itself is the audited exception path.
func (s *Service) GrantEmergencyAccess(ctx context.Context, caller, patient string, condition authz.EmergencyCondition, attestation string, duration int64) (uint64, error) {
	id, err := s.engine.GrantEmergencyAccess(ctx, caller, patient, condition, attestation, duration)
	if err != nil {
		return 0, err
	}
	s.logger.EmergencyAccess(caller, patient, string(condition), true, map[string]interface{}{
		"access_id": id,
	})
	return id, nil
}

// RevokeEmergencyAccess revokes a break-glass grant on behalf of caller.
func (s *Service) RevokeEmergencyAccess(ctx context.Context, caller string, id uint64) error {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "revoke_emergency_access", emergencyKey(id)); err != nil {
		return err
	}
	if err := s.engine.RevokeEmergencyAccess(ctx, caller, id); err != nil {
		return err
	}
	s.logger.Audit(caller, "revoke_emergency_access", emergencyKey(id), true, nil)
	return nil
}

// ExpireEmergencyAccesses sweeps a patient's expired break-glass grants
// on behalf of caller.
func (s *Service) ExpireEmergencyAccesses(ctx context.Context, caller, patient string) (int, error) {
	if err := s.authorize(ctx, caller, authz.PermissionManageAccess, "expire_emergency_accesses", patient); err != nil {
		return 0, err
	}
	expired, err := s.engine.ExpireEmergencyAccesses(ctx, patient)
	if err != nil {
		return 0, err
	}
	s.logger.Audit(caller, "expire_emergency_accesses", patient, true, map[string]interface{}{
		"expired": expired,
	})
	return expired, nil
}
