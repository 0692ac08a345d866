package providers

import (
	"errors"
	"testing"
)

func TestGetUnknownProvider(t *testing.T) {
	r := NewRegistry("http://localhost:8080")

	_, err := r.Get("box")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestGetIsCaseInsensitive(t *testing.T) {
	r := NewRegistry("http://localhost:8080")

	c, err := r.Get("DropBox")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Name != "dropbox" {
		t.Fatalf("Name = %q, want dropbox", c.Name)
	}
}

func TestCatalogQuirks(t *testing.T) {
	r := NewRegistry("http://localhost:8080")

	dropbox, _ := r.Get("dropbox")
	if !dropbox.Quirks.DisablePKCE {
		t.Error("dropbox should have PKCE disabled")
	}
	if dropbox.Quirks.RevokeStyle != RevokeBearer {
		t.Errorf("dropbox RevokeStyle = %q, want bearer", dropbox.Quirks.RevokeStyle)
	}
	if dropbox.Quirks.AuthParams["token_access_type"] != "offline" {
		t.Error("dropbox missing token_access_type=offline")
	}

	gdrive, _ := r.Get("gdrive")
	if gdrive.Quirks.DisablePKCE {
		t.Error("gdrive should use PKCE")
	}
	if gdrive.Quirks.AuthParams["access_type"] != "offline" {
		t.Error("gdrive missing access_type=offline")
	}
	if !gdrive.Quirks.SendNonce {
		t.Error("gdrive should send a nonce")
	}

	github, _ := r.Get("github")
	if github.Quirks.RevokeStyle != RevokeNone {
		t.Errorf("github RevokeStyle = %q, want none", github.Quirks.RevokeStyle)
	}
	if github.RevokeURL != "" {
		t.Errorf("github RevokeURL = %q, want empty", github.RevokeURL)
	}
}

func TestRedirectURLDerivedFromBase(t *testing.T) {
	r := NewRegistry("https://backups.example.com/")

	c, _ := r.Get("github")
	want := "https://backups.example.com/auth/github/callback"
	if c.RedirectURL != want {
		t.Fatalf("RedirectURL = %q, want %q", c.RedirectURL, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GITHUB_CLIENT_ID", "id-123")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret-456")
	t.Setenv("GITHUB_TOKEN_URL", "http://127.0.0.1:9999/token")

	r := NewRegistry("http://localhost:8080")
	c, _ := r.Get("github")

	if c.ClientID != "id-123" || c.ClientSecret != "secret-456" {
		t.Fatalf("credentials not read from env: %+v", c)
	}
	if c.TokenURL != "http://127.0.0.1:9999/token" {
		t.Fatalf("TokenURL override not applied: %q", c.TokenURL)
	}
	if !c.Configured() {
		t.Fatal("provider with credentials should report Configured")
	}
}

func TestAvailableAndValidateAll(t *testing.T) {
	t.Setenv("DROPBOX_CLIENT_ID", "id")
	t.Setenv("DROPBOX_CLIENT_SECRET", "secret")

	r := NewRegistry("http://localhost:8080")

	avail := r.Available()
	if len(avail) != 1 || avail[0] != "dropbox" {
		t.Fatalf("Available = %v, want [dropbox]", avail)
	}

	missing := r.ValidateAll()
	if len(missing) != 3 {
		t.Fatalf("ValidateAll returned %d entries, want 3", len(missing))
	}
	for _, m := range missing {
		if m.Provider == "dropbox" {
			t.Fatal("dropbox should not be reported as missing")
		}
		if len(m.Fields) != 2 {
			t.Fatalf("%s missing fields = %v, want both", m.Provider, m.Fields)
		}
	}
}
