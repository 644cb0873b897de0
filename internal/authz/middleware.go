package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Timi16/Teye-Contracts/pkg/logger"
)

type contextKey string

const (
	callerContextKey    contextKey = "authz_caller"
	requestIDContextKey contextKey = "authz_request_id"
)

// CallerClaims are the JWT claims the service accepts. Subject carries the
// authenticated user identity the engine trusts.
type CallerClaims struct {
	jwt.RegisteredClaims
}

// TokenValidator validates bearer tokens and resolves the caller identity.
// It performs authentication only; authorization stays with the engine.
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
}

// NewTokenValidator creates a new token validator.
func NewTokenValidator(secret, issuer, audience string) *TokenValidator {
	return &TokenValidator{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// Validate parses and verifies a JWT and returns the caller identity.
func (tv *TokenValidator) Validate(tokenString string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if tv.issuer != "" {
		options = append(options, jwt.WithIssuer(tv.issuer))
	}
	if tv.audience != "" {
		options = append(options, jwt.WithAudience(tv.audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &CallerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return tv.secret, nil
	}, options...)
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*CallerClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token carries no subject")
	}
	return claims.Subject, nil
}

// IssueToken mints a token for the given caller, used by tests and by the
// development login endpoint.
func (tv *TokenValidator) IssueToken(caller string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := CallerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller,
			Issuer:    tv.issuer,
			Audience:  jwt.ClaimStrings{tv.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tv.secret)
}

// RequestIDMiddleware assigns every request an ID, reusing the inbound
// X-Request-ID header when a gateway already set one. The ID is echoed on
// the response and stored in the request context for log correlation.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDContextKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request ID stored by RequestIDMiddleware.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the caller identity in the request context.
func AuthMiddleware(validator *TokenValidator, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			caller, err := validator.Validate(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				log.Security("token_rejected", "", map[string]interface{}{
					"path":       r.URL.Path,
					"request_id": RequestIDFromContext(r.Context()),
					"error":      err.Error(),
				})
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext returns the authenticated caller identity stored by
// the auth middleware.
func CallerFromContext(ctx context.Context) (string, bool) {
	caller, ok := ctx.Value(callerContextKey).(string)
	return caller, ok && caller != ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
