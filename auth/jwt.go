package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "llm-router"

// Default token lifetimes per §4.4.
const (
	AccessTokenTTL  = time.Hour
	RefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims is the access-token payload: {sub, role, permissions, jti, iat,
// exp, iss}.
type Claims struct {
	jwt.RegisteredClaims
	Role        Role     `json:"role"`
	Permissions []string `json:"permissions"`
}

// TokenPair is returned by Login/Refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessJTI    string
	RefreshJTI   string
	ExpiresAt    time.Time
}

// refreshRecord is the server-side state for one live refresh token.
type refreshRecord struct {
	userID    string
	expiresAt time.Time
}

// JWTIssuer issues, verifies, and rotates access/refresh tokens. The
// secret is held as a single rotating value (swap via Rotate); refresh
// tokens and the access-token blacklist are concurrent maps per §4.4/§5.
type JWTIssuer struct {
	mu     sync.RWMutex
	secret []byte

	refreshTokens map[string]refreshRecord // jti -> record
	blacklist     map[string]time.Time     // jti -> original exp, for access tokens
	idGen         func() string
}

// NewJWTIssuer builds an issuer with the given HS256 secret.
func NewJWTIssuer(secret string) *JWTIssuer {
	return &JWTIssuer{
		secret:        []byte(secret),
		refreshTokens: make(map[string]refreshRecord),
		blacklist:     make(map[string]time.Time),
		idGen:         newJTI,
	}
}

// Rotate swaps the signing secret. Tokens signed under the old secret stop
// verifying immediately; callers typically pair this with forcing re-login.
func (j *JWTIssuer) Rotate(newSecret string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.secret = []byte(newSecret)
}

// Issue creates a fresh access/refresh pair for a user.
func (j *JWTIssuer) Issue(userID string, role Role, permissions []string) (TokenPair, error) {
	now := time.Now()
	accessJTI := j.idGen()
	refreshJTI := j.idGen()

	access, err := j.signAccess(userID, role, permissions, accessJTI, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := j.signRefresh(userID, refreshJTI, now)
	if err != nil {
		return TokenPair{}, err
	}

	j.mu.Lock()
	j.refreshTokens[refreshJTI] = refreshRecord{userID: userID, expiresAt: now.Add(RefreshTokenTTL)}
	j.mu.Unlock()

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessJTI:    accessJTI,
		RefreshJTI:   refreshJTI,
		ExpiresAt:    now.Add(AccessTokenTTL),
	}, nil
}

func (j *JWTIssuer) signAccess(userID string, role Role, permissions []string, jti string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        jti,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AccessTokenTTL)),
		},
		Role:        role,
		Permissions: permissions,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	j.mu.RLock()
	secret := j.secret
	j.mu.RUnlock()
	return token.SignedString(secret)
}

func (j *JWTIssuer) signRefresh(userID, jti string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        jti,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(RefreshTokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	j.mu.RLock()
	secret := j.secret
	j.mu.RUnlock()
	return token.SignedString(secret)
}

// VerifyAccess parses and validates an access token, rejecting it if its
// jti has been blacklisted (logout / rotation).
func (j *JWTIssuer) VerifyAccess(tokenString string) (*Claims, error) {
	j.mu.RLock()
	secret := j.secret
	j.mu.RUnlock()

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	j.mu.RLock()
	_, blacklisted := j.blacklist[claims.ID]
	j.mu.RUnlock()
	if blacklisted {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Blacklist revokes an access token's jti until its original expiry, after
// which the janitor GCs the entry.
func (j *JWTIssuer) Blacklist(jti string, originalExpiry time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.blacklist[jti] = originalExpiry
}

// Refresh validates a refresh token, rotates it (invalidating the
// predecessor jti immediately), and issues a new access/refresh pair.
// Testable Property 4: after a successful refresh the original jti is
// rejected on any subsequent call.
func (j *JWTIssuer) Refresh(refreshTokenString string, role Role, permissions []string) (TokenPair, error) {
	j.mu.RLock()
	secret := j.secret
	j.mu.RUnlock()

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(refreshTokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	j.mu.Lock()
	rec, ok := j.refreshTokens[claims.ID]
	if !ok {
		j.mu.Unlock()
		return TokenPair{}, ErrTokenInvalid
	}
	// Rotation: the predecessor is invalid the instant we observe it, even
	// if the rest of this call fails.
	delete(j.refreshTokens, claims.ID)
	j.mu.Unlock()

	if time.Now().After(rec.expiresAt) {
		return TokenPair{}, ErrTokenExpired
	}

	return j.Issue(rec.userID, role, permissions)
}

// Sweep removes expired blacklist and refresh-token entries. Intended to be
// called every 5 minutes by a single janitor goroutine (see janitor.go).
func (j *JWTIssuer) Sweep(now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for jti, exp := range j.blacklist {
		if now.After(exp) {
			delete(j.blacklist, jti)
		}
	}
	for jti, rec := range j.refreshTokens {
		if now.After(rec.expiresAt) {
			delete(j.refreshTokens, jti)
		}
	}
}

func newJTI() string {
	return uuid.NewString()
}
