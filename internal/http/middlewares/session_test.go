package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func sessionTestConfig() SessionConfig {
	return SessionConfig{
		CookieName: "bv_session",
		SigningKey: []byte("test-signing-key"),
		TTL:        time.Hour,
	}
}

func TestSessionMintsCookieOnFirstVisit(t *testing.T) {
	t.Parallel()

	var gotSID string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSID = GetSession(r.Context())
	}), Session(sessionTestConfig()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/providers", nil))

	if gotSID == "" {
		t.Fatal("handler saw empty session id")
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != "bv_session" {
		t.Fatalf("expected one bv_session cookie, got %v", cookies)
	}
	if !cookies[0].HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
}

func TestSessionIsStableAcrossRequests(t *testing.T) {
	t.Parallel()

	cfg := sessionTestConfig()
	var sids []string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sids = append(sids, GetSession(r.Context()))
	}), Session(cfg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sids) != 2 || sids[0] != sids[1] {
		t.Fatalf("session not stable: %v", sids)
	}
}

func TestSessionRejectsTamperedCookie(t *testing.T) {
	t.Parallel()

	cfg := sessionTestConfig()
	var sids []string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sids = append(sids, GetSession(r.Context()))
	}), Session(cfg))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookie := rec.Result().Cookies()[0]

	// Firmada con otra clave: debe descartarse y emitirse sesión nueva.
	other := sessionTestConfig()
	other.SigningKey = []byte("attacker-key")
	forged, err := mintSession("fake-sid", other.SigningKey, time.Hour)
	if err != nil {
		t.Fatalf("mintSession: %v", err)
	}
	cookie.Value = forged

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(sids) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(sids))
	}
	if sids[1] == "fake-sid" {
		t.Fatal("forged session id was accepted")
	}
	if sids[1] == sids[0] {
		t.Fatal("expected a fresh session id")
	}
}
