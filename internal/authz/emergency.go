package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// GrantEmergencyAccess issues a time-limited break-glass grant for
// requester on the patient's records and returns its ID. The requester's
// attestation is stored verbatim for later review, and the grant is
// recorded in the per-patient index and the append-only audit trail.
func (e *Engine) GrantEmergencyAccess(ctx context.Context, requester, patient string, condition authz.EmergencyCondition, attestation string, duration int64) (uint64, error) {
	if attestation == "" {
		return 0, authz.NewError(authz.ErrorTypeInvalidInput, authz.ErrorCodeInvalidInput, "emergency access requires an attestation")
	}

	id, err := e.nextEmergencyID(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now()
	access := authz.EmergencyAccess{
		ID:          id,
		Patient:     patient,
		Requester:   requester,
		Condition:   condition,
		Attestation: attestation,
		GrantedAt:   now,
		ExpiresAt:   now + duration,
		Status:      authz.EmergencyActive,
	}

	if err := e.store.Set(ctx, emergencyKey(id), &access); err != nil {
		return 0, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency access", err)
	}
	if err := e.appendEmergencyIndex(ctx, patient, id); err != nil {
		return 0, err
	}
	if err := e.appendEmergencyAudit(ctx, id, requester, "granted"); err != nil {
		return 0, err
	}

	if e.metrics != nil {
		e.metrics.RecordEmergencyAccess("granted", string(condition))
	}
	e.logger.WithFields(logrus.Fields{
		"access_id":  id,
		"requester":  requester,
		"patient":    patient,
		"condition":  string(condition),
		"expires_at": access.ExpiresAt,
	}).Warn("Emergency access granted")

	return id, nil
}

// RevokeEmergencyAccess marks the grant revoked. Fails with
// ErrAccessNotFound when no grant exists under the ID.
func (e *Engine) RevokeEmergencyAccess(ctx context.Context, actor string, id uint64) error {
	var access authz.EmergencyAccess
	found, err := e.store.Get(ctx, emergencyKey(id), &access)
	if err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency access", err)
	}
	if !found {
		return authz.ErrAccessNotFound
	}

	access.Status = authz.EmergencyRevoked
	if err := e.store.Set(ctx, emergencyKey(id), &access); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency access", err)
	}
	if err := e.appendEmergencyAudit(ctx, id, actor, "revoked"); err != nil {
		return err
	}

	if e.metrics != nil {
		e.metrics.RecordEmergencyAccess("revoked", string(access.Condition))
	}
	e.logger.WithFields(logrus.Fields{
		"access_id": id,
		"actor":     actor,
	}).Warn("Emergency access revoked")

	return nil
}

// HasActiveEmergencyAccess reports whether requester holds an unexpired,
// unrevoked emergency grant for the patient's records.
func (e *Engine) HasActiveEmergencyAccess(ctx context.Context, patient, requester string) (bool, error) {
	ids, err := e.emergencyIndex(ctx, patient)
	if err != nil {
		return false, err
	}

	now := e.now()
	for _, id := range ids {
		var access authz.EmergencyAccess
		found, err := e.store.Get(ctx, emergencyKey(id), &access)
		if err != nil {
			return false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency access", err)
		}
		if found && access.Requester == requester && access.Status == authz.EmergencyActive && access.ExpiresAt > now {
			return true, nil
		}
	}
	return false, nil
}

// ExpireEmergencyAccesses sweeps the patient's grants and marks every
// active-but-past-expiry one as Expired, returning how many were swept.
// This is the one non-lazy expiry in the engine: expired grants must show
// up as Expired in audit queries rather than silently vanish.
func (e *Engine) ExpireEmergencyAccesses(ctx context.Context, patient string) (int, error) {
	ids, err := e.emergencyIndex(ctx, patient)
	if err != nil {
		return 0, err
	}

	now := e.now()
	expired := 0
	for _, id := range ids {
		var access authz.EmergencyAccess
		found, err := e.store.Get(ctx, emergencyKey(id), &access)
		if err != nil {
			return expired, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency access", err)
		}
		if !found || access.Status != authz.EmergencyActive || access.ExpiresAt > now {
			continue
		}

		access.Status = authz.EmergencyExpired
		if err := e.store.Set(ctx, emergencyKey(id), &access); err != nil {
			return expired, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency access", err)
		}
		if err := e.appendEmergencyAudit(ctx, id, "system", "expired"); err != nil {
			return expired, err
		}
		if e.metrics != nil {
			e.metrics.RecordEmergencyAccess("expired", string(access.Condition))
		}
		expired++
	}

	if expired > 0 {
		e.logger.WithFields(logrus.Fields{
			"patient": patient,
			"expired": expired,
		}).Info("Emergency accesses expired")
	}
	return expired, nil
}

// EmergencyAuditTrail returns the append-only audit entries for a grant,
// oldest first.
func (e *Engine) EmergencyAuditTrail(ctx context.Context, id uint64) ([]authz.EmergencyAuditEntry, error) {
	var entries []authz.EmergencyAuditEntry
	if _, err := e.store.Get(ctx, emergencyAuditKey(id), &entries); err != nil {
		return nil, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency audit", err)
	}
	return entries, nil
}

// PatientEmergencyAccesses returns every grant ever issued for a patient,
// regardless of status.
func (e *Engine) PatientEmergencyAccesses(ctx context.Context, patient string) ([]authz.EmergencyAccess, error) {
	ids, err := e.emergencyIndex(ctx, patient)
	if err != nil {
		return nil, err
	}

	accesses := make([]authz.EmergencyAccess, 0, len(ids))
	for _, id := range ids {
		var access authz.EmergencyAccess
		found, err := e.store.Get(ctx, emergencyKey(id), &access)
		if err != nil {
			return nil, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency access", err)
		}
		if found {
			accesses = append(accesses, access)
		}
	}
	return accesses, nil
}

func (e *Engine) nextEmergencyID(ctx context.Context) (uint64, error) {
	var seq uint64
	if _, err := e.store.Get(ctx, emergencySequenceKey, &seq); err != nil {
		return 0, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency sequence", err)
	}
	seq++
	if err := e.store.Set(ctx, emergencySequenceKey, seq); err != nil {
		return 0, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency sequence", err)
	}
	return seq, nil
}

func (e *Engine) emergencyIndex(ctx context.Context, patient string) ([]uint64, error) {
	var ids []uint64
	if _, err := e.store.Get(ctx, emergencyPatientIndexKey(patient), &ids); err != nil {
		return nil, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read emergency index", err)
	}
	return ids, nil
}

func (e *Engine) appendEmergencyIndex(ctx context.Context, patient string, id uint64) error {
	ids, err := e.emergencyIndex(ctx, patient)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	if err := e.store.Set(ctx, emergencyPatientIndexKey(patient), ids); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency index", err)
	}
	return nil
}

func (e *Engine) appendEmergencyAudit(ctx context.Context, id uint64, actor, action string) error {
	entries, err := e.EmergencyAuditTrail(ctx, id)
	if err != nil {
		return err
	}
	entries = append(entries, authz.EmergencyAuditEntry{
		AccessID:  id,
		Actor:     actor,
		Action:    action,
		Timestamp: e.now(),
	})
	if err := e.store.Set(ctx, emergencyAuditKey(id), entries); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store emergency audit", err)
	}
	return nil
}
