package authz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
	"github.com/Timi16/Teye-Contracts/pkg/logger"
)

// Handlers exposes the engine and the guarded service over HTTP. Decision
// endpoints are read-only; everything under the admin surface goes through
// the Service so the caller authorization rules apply uniformly.
type Handlers struct {
	service *Service
	logger  *logger.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(service *Service, log *logger.Logger) *Handlers {
	return &Handlers{service: service, logger: log}
}

// RegisterRoutes attaches all routes to the router, typically the /api
// subrouter. The router is expected to already carry the auth middleware.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	// Decision endpoints
	router.HandleFunc("/v1/decisions/permission", h.DecidePermission).Methods("POST")
	router.HandleFunc("/v1/decisions/delegation", h.DecideDelegation).Methods("POST")
	router.HandleFunc("/v1/decisions/policies", h.DecidePolicies).Methods("POST")

	// Role and overlay administration
	router.HandleFunc("/v1/users/{user}/role", h.AssignRole).Methods("PUT")
	router.HandleFunc("/v1/users/{user}/permissions/grant", h.GrantPermission).Methods("POST")
	router.HandleFunc("/v1/users/{user}/permissions/revoke", h.RevokePermission).Methods("POST")
	router.HandleFunc("/v1/users/{user}/credential", h.SetCredential).Methods("PUT")

	// Delegations: the authenticated caller is the delegator
	router.HandleFunc("/v1/delegations/role", h.DelegateRole).Methods("POST")
	router.HandleFunc("/v1/delegations/permissions", h.DelegatePermissions).Methods("POST")

	// Groups
	router.HandleFunc("/v1/groups/{name}", h.CreateGroup).Methods("PUT")
	router.HandleFunc("/v1/groups/{name}", h.DeleteGroup).Methods("DELETE")
	router.HandleFunc("/v1/groups/{name}/members", h.AddToGroup).Methods("POST")
	router.HandleFunc("/v1/groups/{name}/members/{user}", h.RemoveFromGroup).Methods("DELETE")

	// Policies and record attributes
	router.HandleFunc("/v1/policies/{id}", h.CreatePolicy).Methods("PUT")
	router.HandleFunc("/v1/policies/{id}/enabled", h.SetPolicyEnabled).Methods("PUT")
	router.HandleFunc("/v1/records/{id}/sensitivity", h.SetSensitivity).Methods("PUT")

	// Consent: the authenticated caller is the patient
	router.HandleFunc("/v1/consents", h.GrantConsent).Methods("POST")
	router.HandleFunc("/v1/consents/{grantee}", h.RevokeConsent).Methods("DELETE")

	// Emergency access
	router.HandleFunc("/v1/emergency", h.GrantEmergencyAccess).Methods("POST")
	router.HandleFunc("/v1/emergency/expire", h.ExpireEmergencyAccesses).Methods("POST")
	router.HandleFunc("/v1/emergency/{id}", h.RevokeEmergencyAccess).Methods("DELETE")
	router.HandleFunc("/v1/emergency/{id}/audit", h.EmergencyAudit).Methods("GET")
	router.HandleFunc("/v1/patients/{patient}/emergency", h.PatientEmergencyAccesses).Methods("GET")
}

// DecidePermission answers has-permission queries.
func (h *Handlers) DecidePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User       string `json:"user"`
		Permission string `json:"permission"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	permission, err := authz.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	allowed, err := h.service.Engine().HasPermission(r.Context(), req.User, permission)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// DecideDelegation answers has-delegated-permission queries.
func (h *Handlers) DecideDelegation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delegator  string `json:"delegator"`
		Delegatee  string `json:"delegatee"`
		Permission string `json:"permission"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	permission, err := authz.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	allowed, err := h.service.Engine().HasDelegatedPermission(r.Context(), req.Delegator, req.Delegatee, permission)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// DecidePolicies evaluates the registered access policies for a request
// context.
func (h *Handlers) DecidePolicies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User     string  `json:"user"`
		RecordID *uint64 `json:"record_id"`
		Patient  string  `json:"patient"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	var recordID uint64
	if req.RecordID != nil {
		recordID = *req.RecordID
	}
	allowed, err := h.service.Engine().EvaluateAccessPolicies(r.Context(), req.User, recordID, req.RecordID != nil, req.Patient)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// AssignRole handles role assignment.
func (h *Handlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Role      string `json:"role"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.AssignRole(r.Context(), caller, mux.Vars(r)["user"], role, req.ExpiresAt); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantPermission handles custom grant overlays.
func (h *Handlers) GrantPermission(w http.ResponseWriter, r *http.Request) {
	h.mutateOverlay(w, r, h.service.GrantCustomPermission)
}

// RevokePermission handles custom revoke overlays.
func (h *Handlers) RevokePermission(w http.ResponseWriter, r *http.Request) {
	h.mutateOverlay(w, r, h.service.RevokeCustomPermission)
}

// SetCredential records a user's credential tag.
func (h *Handlers) SetCredential(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Credential string `json:"credential"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	credential, err := authz.ParseCredentialType(req.Credential)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetUserCredential(r.Context(), caller, mux.Vars(r)["user"], credential); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DelegateRole delegates the caller's role.
func (h *Handlers) DelegateRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Delegatee string `json:"delegatee"`
		Role      string `json:"role"`
		ExpiresAt int64  `json:"expires_at"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	role, err := authz.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DelegateRole(r.Context(), caller, req.Delegatee, role, req.ExpiresAt); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DelegatePermissions delegates an explicit permission subset.
func (h *Handlers) DelegatePermissions(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Delegatee   string   `json:"delegatee"`
		Permissions []string `json:"permissions"`
		ExpiresAt   int64    `json:"expires_at"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	permissions, err := parsePermissionSet(req.Permissions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.DelegatePermissions(r.Context(), caller, req.Delegatee, permissions, req.ExpiresAt); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateGroup creates or replaces an ACL group.
func (h *Handlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Permissions []string `json:"permissions"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	permissions, err := parsePermissionSet(req.Permissions)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.CreateGroup(r.Context(), caller, mux.Vars(r)["name"], permissions); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteGroup deletes an ACL group.
func (h *Handlers) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteGroup(r.Context(), caller, mux.Vars(r)["name"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddToGroup adds a user to an ACL group.
func (h *Handlers) AddToGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		User string `json:"user"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AddToGroup(r.Context(), caller, req.User, mux.Vars(r)["name"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveFromGroup removes a user from an ACL group.
func (h *Handlers) RemoveFromGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.service.RemoveFromGroup(r.Context(), caller, vars["user"], vars["name"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePolicy registers an ABAC policy.
func (h *Handlers) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Name       string                 `json:"name"`
		Conditions authz.PolicyConditions `json:"conditions"`
		Enabled    bool                   `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	policy := authz.AccessPolicy{
		ID:         mux.Vars(r)["id"],
		Name:       req.Name,
		Conditions: req.Conditions,
		Enabled:    req.Enabled,
	}
	if err := h.service.CreateAccessPolicy(r.Context(), caller, policy); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetPolicyEnabled toggles an ABAC policy.
func (h *Handlers) SetPolicyEnabled(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.SetPolicyEnabled(r.Context(), caller, mux.Vars(r)["id"], req.Enabled); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetSensitivity classifies a record.
func (h *Handlers) SetSensitivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	recordID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid record id")
		return
	}
	var req struct {
		Sensitivity string `json:"sensitivity"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	level, err := authz.ParseSensitivityLevel(req.Sensitivity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.SetRecordSensitivity(r.Context(), caller, recordID, level); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantConsent records the caller's consent for a grantee.
func (h *Handlers) GrantConsent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Grantee     string `json:"grantee"`
		ConsentType string `json:"consent_type"`
		Duration    int64  `json:"duration"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.GrantConsent(r.Context(), caller, req.Grantee, authz.ConsentType(req.ConsentType), req.Duration); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RevokeConsent revokes the caller's consent for a grantee.
func (h *Handlers) RevokeConsent(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.service.RevokeConsent(r.Context(), caller, mux.Vars(r)["grantee"]); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GrantEmergencyAccess issues a break-glass grant with the caller as
// requester.
func (h *Handlers) GrantEmergencyAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Patient     string `json:"patient"`
		Condition   string `json:"condition"`
		Attestation string `json:"attestation"`
		Duration    int64  `json:"duration"`
	}
	if !h.decode(w, r, &req) {
		return
	}

	id, err := h.service.GrantEmergencyAccess(r.Context(), caller, req.Patient, authz.EmergencyCondition(req.Condition), req.Attestation, req.Duration)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"access_id": id})
}

// RevokeEmergencyAccess revokes a break-glass grant.
func (h *Handlers) RevokeEmergencyAccess(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid access id")
		return
	}
	if err := h.service.RevokeEmergencyAccess(r.Context(), caller, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExpireEmergencyAccesses sweeps a patient's expired grants.
func (h *Handlers) ExpireEmergencyAccesses(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Patient string `json:"patient"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	expired, err := h.service.ExpireEmergencyAccesses(r.Context(), caller, req.Patient)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"expired": expired})
}

// EmergencyAudit returns the audit trail for a grant.
func (h *Handlers) EmergencyAudit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid access id")
		return
	}
	entries, err := h.service.Engine().EmergencyAuditTrail(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// PatientEmergencyAccesses lists every grant issued for a patient.
func (h *Handlers) PatientEmergencyAccesses(w http.ResponseWriter, r *http.Request) {
	accesses, err := h.service.Engine().PatientEmergencyAccesses(r.Context(), mux.Vars(r)["patient"])
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accesses)
}

func (h *Handlers) mutateOverlay(w http.ResponseWriter, r *http.Request, mutate func(ctx context.Context, caller, user string, permission authz.Permission) error) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Permission string `json:"permission"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	permission, err := authz.ParsePermission(req.Permission)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := mutate(r.Context(), caller, mux.Vars(r)["user"], permission); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "no authenticated caller")
	}
	return caller, ok
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var authzErr *authz.Error
	switch {
	case errors.Is(err, authz.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &authzErr) && authzErr.Type == authz.ErrorTypeNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &authzErr) && authzErr.Type == authz.ErrorTypeInvalidInput:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePermissionSet(names []string) (authz.PermissionSet, error) {
	var set authz.PermissionSet
	for _, name := range names {
		permission, err := authz.ParsePermission(name)
		if err != nil {
			return 0, err
		}
		set = set.Add(permission)
	}
	return set, nil
}
