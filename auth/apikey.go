package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	apiKeyPrefixLen = 32 // hex chars in the public prefix
	apiKeySecretLen = 64 // hex chars in the secret half
	apiKeyScheme    = "llmr_"
)

// APIKey is the persisted record for one issued key. SecretHash is a bcrypt
// hash of the secret half; the plaintext secret is never stored and is only
// ever returned once, at creation time, inside Issued.FullKey.
type APIKey struct {
	ID          string
	UserID      string
	Prefix      string // the llmr_<32hex> portion, used as a lookup key
	SecretHash  string
	Role        Role
	Permissions []string
	Tier        string
	CreatedAt   time.Time
	ExpiresAt   time.Time // zero means no expiry
	Revoked     bool
	RevokedAt   time.Time
}

// Issued is returned once from IssueAPIKey; FullKey must be shown to the
// caller immediately and is not recoverable afterward.
type Issued struct {
	Record  APIKey
	FullKey string
}

// KeyIssuer creates and verifies API keys in the llmr_<32hex>.<64hex> format
// (Testable Property 9: no plaintext secret is ever persisted).
type KeyIssuer struct {
	hasher *PasswordHasher
}

// NewKeyIssuer builds a KeyIssuer backed by the given password hasher (API
// key secrets are bcrypt-hashed the same way passwords are, at a lower cost
// since they're high-entropy random values rather than user-chosen).
func NewKeyIssuer(hasher *PasswordHasher) *KeyIssuer {
	return &KeyIssuer{hasher: hasher}
}

// Issue generates a new key for userID with the given role/permissions/tier.
// The returned Issued.FullKey is the only time the secret is observable.
func (k *KeyIssuer) Issue(ctx context.Context, userID string, role Role, permissions []string, tier string, ttl time.Duration) (Issued, error) {
	prefix, err := randomHex(apiKeyPrefixLen / 2)
	if err != nil {
		return Issued{}, fmt.Errorf("generate key prefix: %w", err)
	}
	secret, err := randomHex(apiKeySecretLen / 2)
	if err != nil {
		return Issued{}, fmt.Errorf("generate key secret: %w", err)
	}

	hash, err := k.hasher.Hash(ctx, secret)
	if err != nil {
		return Issued{}, fmt.Errorf("hash key secret: %w", err)
	}

	now := time.Now()
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	record := APIKey{
		ID:          apiKeyScheme + prefix,
		UserID:      userID,
		Prefix:      apiKeyScheme + prefix,
		SecretHash:  hash,
		Role:        role,
		Permissions: permissions,
		Tier:        tier,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	}
	fullKey := fmt.Sprintf("%s%s.%s", apiKeyScheme, prefix, secret)
	return Issued{Record: record, FullKey: fullKey}, nil
}

// ParseKey splits a presented key into its lookup prefix and secret, without
// touching any store. Callers look the prefix up, then call Verify.
func ParseKey(fullKey string) (prefix, secret string, err error) {
	if !strings.HasPrefix(fullKey, apiKeyScheme) {
		return "", "", ErrKeyNotFound
	}
	rest := strings.TrimPrefix(fullKey, apiKeyScheme)
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return "", "", ErrKeyNotFound
	}
	prefix = apiKeyScheme + rest[:dot]
	secret = rest[dot+1:]
	if len(rest[:dot]) != apiKeyPrefixLen || len(secret) != apiKeySecretLen {
		return "", "", ErrKeyNotFound
	}
	return prefix, secret, nil
}

// Verify checks a presented secret against a stored record. Revocation is
// checked before the (expensive) bcrypt comparison so a revoked key is
// rejected in constant-ish time without burning a worker-pool slot.
func (k *KeyIssuer) Verify(ctx context.Context, record APIKey, secret string) error {
	if record.Revoked {
		return ErrKeyRevoked
	}
	if !record.ExpiresAt.IsZero() && time.Now().After(record.ExpiresAt) {
		return ErrKeyRevoked
	}
	ok, err := k.hasher.Verify(ctx, record.SecretHash, secret)
	if err != nil {
		return fmt.Errorf("verify key secret: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

func randomHex(numBytes int) (string, error) {
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
