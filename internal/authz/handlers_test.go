package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Timi16/Teye-Contracts/pkg/authz"
	"github.com/Timi16/Teye-Contracts/pkg/logger"
)

type handlerFixture struct {
	service   *Service
	validator *TokenValidator
	router    *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	engine, _ := newTestEngine(1000)
	log := logger.New("panic")
	service := NewService(engine, log)
	validator := NewTokenValidator("test-secret", "teye-authz", "teye-users")

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.Use(RequestIDMiddleware)
	api.Use(AuthMiddleware(validator, log))
	NewHandlers(service, log).RegisterRoutes(api)

	return &handlerFixture{service: service, validator: validator, router: router}
}

func (f *handlerFixture) request(t *testing.T, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		token, err := f.validator.IssueToken(caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHandlers_RequireBearerToken(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, "POST", "/api/v1/decisions/permission", "", map[string]string{
		"user": "alice", "permission": "write_record",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest("POST", "/api/v1/decisions/permission", bytes.NewBufferString("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlers_RequestIDEchoedOnResponses(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, "POST", "/api/v1/decisions/permission", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("POST", "/api/v1/decisions/permission", bytes.NewBufferString("{}"))
	req.Header.Set("X-Request-ID", "upstream-42")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-42", rec.Header().Get("X-Request-ID"))
}

func TestHandlers_PermissionDecision(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "alice", authz.RoleOptometrist, 0))

	rec := f.request(t, "POST", "/api/v1/decisions/permission", "gateway", map[string]string{
		"user": "alice", "permission": "write_record",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["allowed"])

	rec = f.request(t, "POST", "/api/v1/decisions/permission", "gateway", map[string]string{
		"user": "alice", "permission": "system_admin",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp["allowed"])
}

func TestHandlers_UnknownPermissionIsBadRequest(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.request(t, "POST", "/api/v1/decisions/permission", "gateway", map[string]string{
		"user": "alice", "permission": "fly",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_AdminFlow(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "root", authz.RoleAdmin, 0))

	rec := f.request(t, "PUT", "/api/v1/users/alice/role", "root", map[string]interface{}{
		"role": "staff", "expires_at": 0,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, "PUT", "/api/v1/groups/auditors", "root", map[string]interface{}{
		"permissions": []string{"read_any_record"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, "POST", "/api/v1/groups/auditors/members", "root", map[string]string{
		"user": "alice",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	allowed, err := f.service.Engine().HasPermission(ctx, "alice", authz.PermissionReadAnyRecord)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestHandlers_ForbiddenForUnprivilegedCaller(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "mallory", authz.RolePatient, 0))

	rec := f.request(t, "PUT", "/api/v1/users/mallory/role", "mallory", map[string]interface{}{
		"role": "admin", "expires_at": 0,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlers_MissingGroupIsNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "root", authz.RoleAdmin, 0))

	rec := f.request(t, "POST", "/api/v1/groups/ghosts/members", "root", map[string]string{
		"user": "alice",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_EmergencyRoundTrip(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "root", authz.RoleAdmin, 0))

	rec := f.request(t, "POST", "/api/v1/emergency", "dr-grey", map[string]interface{}{
		"patient":     "patient-1",
		"condition":   "life_threatening",
		"attestation": "unresponsive on arrival",
		"duration":    600,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]uint64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created["access_id"])

	rec = f.request(t, "GET", "/api/v1/patients/patient-1/emergency", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accesses []authz.EmergencyAccess
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &accesses))
	require.Len(t, accesses, 1)
	assert.Equal(t, authz.EmergencyActive, accesses[0].Status)

	rec = f.request(t, "DELETE", "/api/v1/emergency/1", "root", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, "GET", "/api/v1/emergency/1/audit", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var trail []authz.EmergencyAuditEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trail))
	assert.Len(t, trail, 2)
}

func TestHandlers_PolicyDecision(t *testing.T) {
	f := newHandlerFixture(t)
	ctx := context.Background()
	require.NoError(t, f.service.Engine().AssignRole(ctx, "root", authz.RoleAdmin, 0))

	rec := f.request(t, "PUT", "/api/v1/policies/staff-window", "root", map[string]interface{}{
		"name": "staff window",
		"conditions": map[string]interface{}{
			"required_role":    "staff",
			"time_restriction": map[string]interface{}{"kind": "none"},
		},
		"enabled": true,
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.NoError(t, f.service.Engine().AssignRole(ctx, "alice", authz.RoleStaff, 0))

	rec = f.request(t, "POST", "/api/v1/decisions/policies", "gateway", map[string]interface{}{
		"user": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp["allowed"])
}
