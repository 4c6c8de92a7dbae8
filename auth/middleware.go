package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ferro-labs/ai-gateway/internal/logging"
)

type contextKey string

const principalContextKey contextKey = "auth_principal"

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	return p, ok
}

// Authenticator validates the Authorization header of incoming requests,
// accepting either a JWT access token ("Bearer <jwt>") or an API key
// ("Bearer llmr_...") and attaching the resolved Principal to the request
// context on success.
type Authenticator struct {
	issuer *JWTIssuer
	keys   *KeyIssuer
	store  Store
}

// NewAuthenticator builds an Authenticator over the given issuer/store.
func NewAuthenticator(issuer *JWTIssuer, keys *KeyIssuer, store Store) *Authenticator {
	return &Authenticator{issuer: issuer, keys: keys, store: store}
}

// Authenticate resolves a raw Authorization header value (including the
// "Bearer " prefix) into a Principal.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Principal, error) {
	if !strings.HasPrefix(header, "Bearer ") {
		return Principal{}, ErrTokenInvalid
	}
	token := strings.TrimPrefix(header, "Bearer ")

	if strings.HasPrefix(token, apiKeyScheme) {
		return a.authenticateAPIKey(ctx, token)
	}
	return a.authenticateJWT(token)
}

func (a *Authenticator) authenticateJWT(token string) (Principal, error) {
	claims, err := a.issuer.VerifyAccess(token)
	if err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:      claims.Subject,
		Role:        claims.Role,
		Permissions: claims.Permissions,
	}, nil
}

func (a *Authenticator) authenticateAPIKey(ctx context.Context, token string) (Principal, error) {
	prefix, secret, err := ParseKey(token)
	if err != nil {
		return Principal{}, err
	}
	record, err := a.store.GetAPIKeyByPrefix(ctx, prefix)
	if err != nil {
		return Principal{}, err
	}
	if err := a.keys.Verify(ctx, record, secret); err != nil {
		return Principal{}, err
	}
	return Principal{
		UserID:      record.UserID,
		Role:        record.Role,
		Permissions: record.Permissions,
		KeyID:       record.ID,
		Tier:        record.Tier,
	}, nil
}

// Middleware returns an http middleware enforcing authentication and
// attaching the resolved Principal to the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			logging.FromContext(r.Context()).Warn("authentication failed", "error", err)
			writeAuthError(w, http.StatusUnauthorized, "unauthenticated")
			return
		}
		ctx := context.WithValue(r.Context(), principalContextKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission returns a middleware that rejects requests whose
// principal lacks the required permission (colon-segment wildcard rule).
func RequirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if !HasPermission(principal.Permissions, required) {
				writeAuthError(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns a middleware that rejects requests whose principal is
// not exactly one of the allowed roles.
func RequireRole(allowed ...Role) func(http.Handler) http.Handler {
	set := make(map[Role]bool, len(allowed))
	for _, r := range allowed {
		set[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "unauthenticated")
				return
			}
			if !set[principal.Role] {
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
