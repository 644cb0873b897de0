package authz

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
)

// SetUserCredential records the user's verified credential tag for
// attribute-based policy checks.
func (e *Engine) SetUserCredential(ctx context.Context, user string, credential authz.CredentialType) error {
	if err := e.store.Set(ctx, credentialKey(user), credential); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store user credential", err)
	}

	e.logger.WithFields(logrus.Fields{
		"user":       user,
		"credential": credential.String(),
	}).Info("User credential set")
	return nil
}

// GetUserCredential returns the user's credential tag, defaulting to
// CredentialNone when unset.
func (e *Engine) GetUserCredential(ctx context.Context, user string) (authz.CredentialType, error) {
	credential := authz.CredentialNone
	if _, err := e.store.Get(ctx, credentialKey(user), &credential); err != nil {
		return authz.CredentialNone, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read user credential", err)
	}
	return credential, nil
}

// SetRecordSensitivity classifies a record for minimum-clearance checks.
func (e *Engine) SetRecordSensitivity(ctx context.Context, recordID uint64, level authz.SensitivityLevel) error {
	if err := e.store.Set(ctx, sensitivityKey(recordID), level); err != nil {
		return authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to store record sensitivity", err)
	}

	e.logger.WithFields(logrus.Fields{
		"record":      recordID,
		"sensitivity": level.String(),
	}).Info("Record sensitivity set")
	return nil
}

// GetRecordSensitivity returns the record's sensitivity tier, defaulting
// to Standard when unset.
func (e *Engine) GetRecordSensitivity(ctx context.Context, recordID uint64) (authz.SensitivityLevel, error) {
	level := authz.SensitivityStandard
	if _, err := e.store.Get(ctx, sensitivityKey(recordID), &level); err != nil {
		return authz.SensitivityStandard, authz.WrapError(authz.ErrorTypeStorage, authz.ErrorCodeStorage, "failed to read record sensitivity", err)
	}
	return level, nil
}
