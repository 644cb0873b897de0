package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// CreateAccessPolicy stores the policy and registers it in the evaluation
// index. Policies are evaluated in registration order; re-creating an
// existing policy replaces its definition without changing its position.
func (e *Engine) CreateAccessPolicy(ctx context.Context, policy authz.AccessPolicy) error {
	if policy.ID == "" {
		return authz.NewError(authz.ErrorTypeInvalidInput, authz.ErrorCodeInvalidInput, "policy id must not be empty")
	}

	if err := e.store.Set(ctx, policyKey(policy.ID), &policy); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store access policy", err)
	}

	var index []string
	if _, err := e.store.Get(ctx, policyIndexKey, &index); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read policy index", err)
	}
	registered := false
	for _, id := range index {
		if id == policy.ID {
			registered = true
			break
		}
	}
	if !registered {
		index = append(index, policy.ID)
		if err := e.store.Set(ctx, policyIndexKey, index); err != nil {
			return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store policy index", err)
		}
	}

	e.logger.WithFields(logrus.Fields{
		"policy":  policy.ID,
		"name":    policy.Name,
		"enabled": policy.Enabled,
	}).Info("Access policy created")
	return nil
}

// SetPolicyEnabled toggles the enabled flag on an existing policy.
func (e *Engine) SetPolicyEnabled(ctx context.Context, id string, enabled bool) error {
	var policy authz.AccessPolicy
	found, err := e.store.Get(ctx, policyKey(id), &policy)
	if err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read access policy", err)
	}
	if !found {
		return authz.NewError(authz.ErrorTypeNotFound, authz.ErrorCodeInvalidInput, "access policy does not exist")
	}

	policy.Enabled = enabled
	if err := e.store.Set(ctx, policyKey(id), &policy); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store access policy", err)
	}

	e.logger.WithFields(logrus.Fields{"policy": id, "enabled": enabled}).Info("Access policy toggled")
	return nil
}

// GetAccessPolicy returns the stored policy by ID.
func (e *Engine) GetAccessPolicy(ctx context.Context, id string) (*authz.AccessPolicy, bool, error) {
	var policy authz.AccessPolicy
	found, err := e.store.Get(ctx, policyKey(id), &policy)
	if err != nil {
		return nil, false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read access policy", err)
	}
	if !found {
		return nil, false, nil
	}
	return &policy, true, nil
}

// EvaluatePolicy checks every condition of the policy against the request
// context. All conditions are AND-ed and evaluation fails closed: a
// disabled policy, a missing assignment, or missing required context all
// yield false, never an error.
func (e *Engine) EvaluatePolicy(ctx context.Context, policy *authz.AccessPolicy, pctx *authz.PolicyContext) (bool, error) {
	if !policy.Enabled {
		return false, nil
	}

	if policy.Conditions.RequiredRole != authz.RoleNone {
		assignment, found, err := e.GetActiveAssignment(ctx, pctx.User)
		if err != nil {
			return false, err
		}
		// Exact role match, not "at least".
		if !found || assignment.Role != policy.Conditions.RequiredRole {
			return false, nil
		}
	}

	if !policy.Conditions.TimeRestriction.Satisfied(pctx.CurrentTime) {
		return false, nil
	}

	if policy.Conditions.RequiredCredential != authz.CredentialNone {
		credential, err := e.GetUserCredential(ctx, pctx.User)
		if err != nil {
			return false, err
		}
		if credential != policy.Conditions.RequiredCredential {
			return false, nil
		}
	}

	if pctx.HasRecordID {
		level, err := e.GetRecordSensitivity(ctx, pctx.RecordID)
		if err != nil {
			return false, err
		}
		if level < policy.Conditions.MinSensitivity {
			return false, nil
		}
	}

	if policy.Conditions.ConsentRequired {
		if pctx.Patient == "" || !pctx.HasRecordID {
			return false, nil
		}
		active, err := e.HasActiveConsent(ctx, pctx.Patient, pctx.User)
		if err != nil {
			return false, err
		}
		if !active {
			return false, nil
		}
	}

	return true, nil
}

// EvaluateAccessPolicies evaluates every registered policy in registration
// order against a context built from the arguments and the engine clock,
// returning true on the first match. No registered policies, or none
// matching, yields false.
func (e *Engine) EvaluateAccessPolicies(ctx context.Context, user string, recordID uint64, hasRecordID bool, patient string) (bool, error) {
	pctx := authz.PolicyContext{
		User:        user,
		RecordID:    recordID,
		HasRecordID: hasRecordID,
		Patient:     patient,
		CurrentTime: e.now(),
	}

	var index []string
	if _, err := e.store.Get(ctx, policyIndexKey, &index); err != nil {
		return false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read policy index", err)
	}

	for _, id := range index {
		policy, found, err := e.GetAccessPolicy(ctx, id)
		if err != nil {
			return false, err
		}
		if !found {
			continue
		}

		matched, err := e.EvaluatePolicy(ctx, policy, &pctx)
		if err != nil {
			return false, err
		}
		if e.metrics != nil {
			e.metrics.RecordPolicyEvaluation(id, matched)
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
