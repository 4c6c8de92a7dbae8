package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ferro-labs/ai-gateway/auth"
	"github.com/go-chi/chi/v5"
)

// authServer wires the auth package's issuer/store into the gateway's own
// /auth/* surface (distinct from internal/admin's separate admin-key auth).
type authServer struct {
	issuer *auth.JWTIssuer
	keys   *auth.KeyIssuer
	hasher *auth.PasswordHasher
	store  auth.Store
}

func newAuthServer(secret string, bcryptCost int) *authServer {
	hasher := auth.NewPasswordHasher(bcryptCost, 4)
	return &authServer{
		issuer: auth.NewJWTIssuer(secret),
		keys:   auth.NewKeyIssuer(hasher),
		hasher: hasher,
		store:  auth.NewMemoryStore(),
	}
}

func (s *authServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)
	r.Post("/refresh", s.handleRefresh)

	authenticator := auth.NewAuthenticator(s.issuer, s.keys, s.store)
	r.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware)
		r.Post("/apikeys", s.handleIssueAPIKey)
		r.Delete("/apikeys/{id}", s.handleRevokeAPIKey)
	})
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	TokenType    string      `json:"tokenType"`
	User         userSummary `json:"user"`
}

type userSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *authServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	user, err := s.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		writeGatewayError(w, http.StatusUnauthorized, "unauthenticated", "invalid username or password")
		return
	}
	now := time.Now()
	if auth.IsLocked(&user, now) {
		writeGatewayError(w, http.StatusUnauthorized, "unauthenticated", "account temporarily locked")
		return
	}
	ok, err := s.hasher.Verify(r.Context(), user.PasswordHash, req.Password)
	if err != nil || !ok {
		auth.RecordFailure(&user, now)
		_ = s.store.PutUser(r.Context(), user)
		writeGatewayError(w, http.StatusUnauthorized, "unauthenticated", "invalid username or password")
		return
	}
	auth.RecordSuccess(&user)
	_ = s.store.PutUser(r.Context(), user)

	pair, err := s.issuer.Issue(user.ID, user.Role, user.Permissions())
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, "internal", "token issuance failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		User:         userSummary{ID: user.ID, Username: user.Username, Role: string(user.Role)},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *authServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	// The role/permissions embedded in the new access token come from the
	// stored user record, not the old token, so a role change takes effect
	// on the very next refresh.
	claims, err := s.issuer.VerifyAccess(req.RefreshToken)
	var role auth.Role
	var perms []string
	var userID string
	if err == nil {
		role, perms, userID = claims.Role, claims.Permissions, claims.Subject
	}
	if user, lookupErr := s.store.GetUserByID(r.Context(), userID); lookupErr == nil {
		role, perms = user.Role, user.Permissions()
	}

	pair, err := s.issuer.Refresh(req.RefreshToken, role, perms)
	if err != nil {
		writeGatewayError(w, http.StatusUnauthorized, "unauthenticated", "invalid or expired refresh token")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
	})
}

type issueAPIKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions,omitempty"`
	ExpiresAt   string   `json:"expiresAt,omitempty"`
}

type issueAPIKeyResponse struct {
	ID          string   `json:"id"`
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	ExpiresAt   string   `json:"expiresAt,omitempty"`
}

// handleIssueAPIKey returns the plaintext key exactly once, per Testable
// Property 3 (API-key secrecy).
func (s *authServer) handleIssueAPIKey(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeGatewayError(w, http.StatusUnauthorized, "unauthenticated", "missing principal")
		return
	}
	var req issueAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeGatewayError(w, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	perms := req.Permissions
	if len(perms) == 0 {
		perms = auth.PermissionsForRole(principal.Role)
	}

	issued, err := s.keys.Issue(r.Context(), principal.UserID, principal.Role, perms, principal.Tier, 0)
	if err != nil {
		writeGatewayError(w, http.StatusInternalServerError, "internal", "key issuance failed")
		return
	}
	if err := s.store.PutAPIKey(r.Context(), issued.Record); err != nil {
		writeGatewayError(w, http.StatusInternalServerError, "internal", "key persistence failed")
		return
	}
	writeJSON(w, http.StatusCreated, issueAPIKeyResponse{
		ID:          issued.Record.ID,
		Key:         issued.FullKey,
		Name:        req.Name,
		Permissions: issued.Record.Permissions,
	})
}

func (s *authServer) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.RevokeAPIKey(r.Context(), id); err != nil {
		writeGatewayError(w, http.StatusNotFound, "not_found", "api key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGatewayError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   kind,
		"message": message,
	})
}

// startJanitor runs the background jti/refresh-token sweep until ctx is
// cancelled when the server shuts down.
func (s *authServer) startJanitor(ctx context.Context) {
	j := auth.NewJanitor(s.issuer, 5*time.Minute)
	go j.Run(ctx)
}
