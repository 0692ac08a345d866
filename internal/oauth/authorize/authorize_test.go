package authorize

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/backvault/internal/cache"
	"github.com/dropDatabas3/backvault/internal/oauth/providers"
	"github.com/dropDatabas3/backvault/internal/oauth/state"
)

func newTestBuilder(t *testing.T) (*Builder, *state.Manager) {
	t.Helper()
	t.Setenv("GDRIVE_CLIENT_ID", "gid")
	t.Setenv("GDRIVE_CLIENT_SECRET", "gsecret")
	t.Setenv("DROPBOX_CLIENT_ID", "did")
	t.Setenv("DROPBOX_CLIENT_SECRET", "dsecret")

	states := state.NewManager(cache.NewMemory(time.Hour), 10*time.Minute)
	reg := providers.NewRegistry("http://localhost:8080")
	return NewBuilder(reg, states), states
}

func mustParseQuery(t *testing.T, rawURL string) url.Values {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing %q: %v", rawURL, err)
	}
	return u.Query()
}

func TestBuildWithPKCE(t *testing.T) {
	b, states := newTestBuilder(t)
	ctx := context.Background()

	rawURL, stateToken, err := b.Build(ctx, "gdrive", "/dashboard")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	q := mustParseQuery(t, rawURL)
	if q.Get("client_id") != "gid" {
		t.Errorf("client_id = %q", q.Get("client_id"))
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q", q.Get("response_type"))
	}
	if q.Get("code_challenge") == "" || q.Get("code_challenge_method") != "S256" {
		t.Error("missing PKCE challenge for gdrive")
	}
	if q.Get("access_type") != "offline" || q.Get("prompt") != "consent" {
		t.Error("missing gdrive auth params")
	}
	if q.Get("nonce") == "" {
		t.Error("gdrive should carry a nonce")
	}
	if q.Get("state") != stateToken {
		t.Error("state in URL differs from returned token")
	}
	if q.Get("redirect_uri") != "http://localhost:8080/auth/gdrive/callback" {
		t.Errorf("redirect_uri = %q", q.Get("redirect_uri"))
	}

	// The pending record must carry the verifier matching the challenge.
	rec, err := states.ValidateAndConsume(ctx, stateToken)
	if err != nil {
		t.Fatalf("consuming state: %v", err)
	}
	if rec.CodeVerifier == "" {
		t.Fatal("state record has no code verifier")
	}
	if rec.RedirectAfterAuth != "/dashboard" {
		t.Fatalf("RedirectAfterAuth = %q", rec.RedirectAfterAuth)
	}
}

func TestBuildDropboxSkipsPKCE(t *testing.T) {
	b, states := newTestBuilder(t)
	ctx := context.Background()

	rawURL, stateToken, err := b.Build(ctx, "dropbox", "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	q := mustParseQuery(t, rawURL)
	if q.Has("code_challenge") || q.Has("code_challenge_method") {
		t.Error("dropbox URL must not carry PKCE parameters")
	}
	if q.Get("token_access_type") != "offline" {
		t.Error("dropbox missing token_access_type=offline")
	}

	rec, err := states.ValidateAndConsume(ctx, stateToken)
	if err != nil {
		t.Fatalf("consuming state: %v", err)
	}
	if rec.CodeVerifier != "" {
		t.Fatal("dropbox record should have no code verifier")
	}
}

func TestBuildUnknownProvider(t *testing.T) {
	b, _ := newTestBuilder(t)

	if _, _, err := b.Build(context.Background(), "box", ""); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestBuildStatesAreFresh(t *testing.T) {
	b, _ := newTestBuilder(t)
	ctx := context.Background()

	_, s1, err := b.Build(ctx, "gdrive", "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, s2, err := b.Build(ctx, "gdrive", "")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if s1 == s2 {
		t.Fatal("two Build calls returned the same state token")
	}
}
