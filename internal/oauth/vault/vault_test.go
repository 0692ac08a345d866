package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
	"github.com/dropDatabas3/backvault/internal/oauth/exchange"
	"github.com/dropDatabas3/backvault/internal/security/secretbox"
)

func newTestVault(t *testing.T) (*Vault, cache.Client) {
	t.Helper()
	store := cache.NewMemory(time.Hour)
	return New(store, secretbox.NewEphemeral()), store
}

func TestStoreEncryptsAtRest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, store := newTestVault(t)

	toks := exchange.Tokens{
		AccessToken:  "plaintext-access",
		RefreshToken: "plaintext-refresh",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	}
	if err := v.Store(ctx, "dropbox", "sess-1", toks); err != nil {
		t.Fatalf("Store: %v", err)
	}

	raw, err := store.Get(ctx, "oauthtok:dropbox:sess-1")
	if err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if strings.Contains(raw, "plaintext-access") || strings.Contains(raw, "plaintext-refresh") {
		t.Fatal("stored record contains plaintext token material")
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if !strings.Contains(rec.AccessTokenEnc, "|") {
		t.Fatal("access token envelope missing separator")
	}
	if rec.ExpiresAt.IsZero() {
		t.Fatal("ExpiresAt not derived from expires_in")
	}
}

func TestGetRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newTestVault(t)

	toks := exchange.Tokens{
		AccessToken:  "at",
		RefreshToken: "rt",
		IDToken:      "idt",
		TokenType:    "Bearer",
		Scope:        "drive.file",
		ExpiresIn:    3600,
	}
	if err := v.Store(ctx, "gdrive", "s", toks); err != nil {
		t.Fatalf("Store: %v", err)
	}

	creds, err := v.Get(ctx, "gdrive", "s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if creds.AccessToken != "at" || creds.RefreshToken != "rt" || creds.IDToken != "idt" {
		t.Fatalf("credentials mismatch: %+v", creds)
	}
	if creds.Scope != "drive.file" || creds.TokenType != "Bearer" {
		t.Fatalf("metadata mismatch: %+v", creds)
	}
}

func TestGetNoRecord(t *testing.T) {
	t.Parallel()
	v, _ := newTestVault(t)

	_, err := v.Get(context.Background(), "gdrive", "nobody")
	if !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestUpdatePreservesRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newTestVault(t)

	if err := v.Store(ctx, "gdrive", "s", exchange.Tokens{
		AccessToken:  "at-old",
		RefreshToken: "rt-keep",
		ExpiresIn:    3600,
	}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// Refresh response without a refresh token (the common case).
	if err := v.Update(ctx, "gdrive", "s", exchange.Tokens{
		AccessToken: "at-new",
		ExpiresIn:   3600,
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	creds, err := v.Get(ctx, "gdrive", "s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if creds.AccessToken != "at-new" {
		t.Fatalf("AccessToken = %q, want at-new", creds.AccessToken)
	}
	if creds.RefreshToken != "rt-keep" {
		t.Fatalf("RefreshToken = %q, want rt-keep (preserved)", creds.RefreshToken)
	}
}

func TestUpdateRotatesRefreshToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newTestVault(t)

	v.Store(ctx, "dropbox", "s", exchange.Tokens{AccessToken: "a1", RefreshToken: "r1"})
	v.Update(ctx, "dropbox", "s", exchange.Tokens{AccessToken: "a2", RefreshToken: "r2"})

	creds, err := v.Get(ctx, "dropbox", "s")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if creds.RefreshToken != "r2" {
		t.Fatalf("RefreshToken = %q, want rotated r2", creds.RefreshToken)
	}
}

func TestGetDiscardsUndecryptableRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := cache.NewMemory(time.Hour)

	// Written with one key, read with another: simulated key rotation.
	writer := New(store, secretbox.NewEphemeral())
	if err := writer.Store(ctx, "github", "s", exchange.Tokens{AccessToken: "at"}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	reader := New(store, secretbox.NewEphemeral())
	_, err := reader.Get(ctx, "github", "s")
	if !errors.Is(err, secretbox.ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}

	// The poisoned record is gone: next read is a clean miss.
	if _, err := reader.Get(ctx, "github", "s"); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord after discard, got %v", err)
	}
}

func TestMetaDoesNotRequireDecryption(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := cache.NewMemory(time.Hour)

	writer := New(store, secretbox.NewEphemeral())
	writer.Store(ctx, "gdrive", "s", exchange.Tokens{
		AccessToken:  "at",
		RefreshToken: "rt",
		TokenType:    "Bearer",
		ExpiresIn:    3600,
	})

	// Different key: decrypt would fail, Meta must not care.
	reader := New(store, secretbox.NewEphemeral())
	meta, err := reader.Meta(ctx, "gdrive", "s")
	if err != nil {
		t.Fatalf("Meta: %v", err)
	}
	if !meta.Connected || !meta.HasRefreshToken || meta.TokenType != "Bearer" {
		t.Fatalf("meta mismatch: %+v", meta)
	}

	meta, err = reader.Meta(ctx, "gdrive", "other")
	if err != nil {
		t.Fatalf("Meta (miss): %v", err)
	}
	if meta.Connected {
		t.Fatal("missing record should report Connected=false")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newTestVault(t)

	v.Store(ctx, "github", "s", exchange.Tokens{AccessToken: "at"})
	if err := v.Delete(ctx, "github", "s"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := v.Delete(ctx, "github", "s"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := v.Get(ctx, "github", "s"); !errors.Is(err, ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	v, _ := newTestVault(t)

	v.Store(ctx, "github", "alice", exchange.Tokens{AccessToken: "at-alice"})
	v.Store(ctx, "github", "bob", exchange.Tokens{AccessToken: "at-bob"})

	creds, _ := v.Get(ctx, "github", "alice")
	if creds.AccessToken != "at-alice" {
		t.Fatalf("alice got %q", creds.AccessToken)
	}
	creds, _ = v.Get(ctx, "github", "bob")
	if creds.AccessToken != "at-bob" {
		t.Fatalf("bob got %q", creds.AccessToken)
	}
}
