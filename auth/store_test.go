package auth

import (
	"context"
	"testing"
)

func TestMemoryStore_UserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	u := User{ID: "u_1", Username: "ada", Role: RolePro}
	if err := s.PutUser(ctx, u); err != nil {
		t.Fatalf("put user: %v", err)
	}

	got, err := s.GetUserByID(ctx, "u_1")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if got.Username != "ada" {
		t.Errorf("got username %q, want ada", got.Username)
	}

	got, err = s.GetUserByUsername(ctx, "ada")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if got.ID != "u_1" {
		t.Errorf("got id %q, want u_1", got.ID)
	}
}

func TestMemoryStore_UnknownUser(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if _, err := s.GetUserByID(ctx, "missing"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestMemoryStore_APIKeyLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	k := APIKey{ID: "llmr_abc", Prefix: "llmr_abc", UserID: "u_1"}
	if err := s.PutAPIKey(ctx, k); err != nil {
		t.Fatalf("put key: %v", err)
	}

	got, err := s.GetAPIKeyByPrefix(ctx, "llmr_abc")
	if err != nil {
		t.Fatalf("get key: %v", err)
	}
	if got.UserID != "u_1" {
		t.Errorf("got user %q, want u_1", got.UserID)
	}

	if err := s.RevokeAPIKey(ctx, "llmr_abc"); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	got, _ = s.GetAPIKeyByPrefix(ctx, "llmr_abc")
	if !got.Revoked {
		t.Fatalf("expected key to be revoked")
	}

	keys, err := s.ListAPIKeysByUser(ctx, "u_1")
	if err != nil {
		t.Fatalf("list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key for user, got %d", len(keys))
	}
}

func TestMemoryStore_RevokeUnknownKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.RevokeAPIKey(ctx, "llmr_missing"); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}
