package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// GrantConsent records a patient's consent for grantee to access their
// records, valid for duration seconds from the current clock reading. A
// repeat grant replaces the prior one, clearing any revocation.
func (e *Engine) GrantConsent(ctx context.Context, patient, grantee string, consentType authz.ConsentType, duration int64) error {
	now := e.now()
	grant := authz.ConsentGrant{
		Patient:     patient,
		Grantee:     grantee,
		ConsentType: consentType,
		GrantedAt:   now,
		ExpiresAt:   now + duration,
	}

	if err := e.store.Set(ctx, consentKey(patient, grantee), &grant); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store consent grant", err)
	}

	e.logger.WithFields(logrus.Fields{
		"patient":      patient,
		"grantee":      grantee,
		"consent_type": string(consentType),
		"expires_at":   grant.ExpiresAt,
	}).Info("Consent granted")
	return nil
}

// RevokeConsent marks the (patient, grantee) consent as revoked. Revoking
// absent consent is not an error.
func (e *Engine) RevokeConsent(ctx context.Context, patient, grantee string) error {
	var grant authz.ConsentGrant
	found, err := e.store.Get(ctx, consentKey(patient, grantee), &grant)
	if err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read consent grant", err)
	}
	if !found || grant.Revoked {
		return nil
	}

	grant.Revoked = true
	if err := e.store.Set(ctx, consentKey(patient, grantee), &grant); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store consent grant", err)
	}

	e.logger.WithFields(logrus.Fields{
		"patient": patient,
		"grantee": grantee,
	}).Info("Consent revoked")
	return nil
}

// HasActiveConsent reports whether an unexpired, unrevoked consent exists
// for the (patient, grantee) pair.
func (e *Engine) HasActiveConsent(ctx context.Context, patient, grantee string) (bool, error) {
	var grant authz.ConsentGrant
	found, err := e.store.Get(ctx, consentKey(patient, grantee), &grant)
	if err != nil {
		return false, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read consent grant", err)
	}
	return found && grant.Active(e.now()), nil
}
