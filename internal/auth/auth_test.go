package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager([]byte("test-secret"), time.Hour, false)
	token, expires, err := m.Issue(Principal{Subject: "sub-1", Email: "ada@example.com", Name: "Ada"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expiry %v is in the past", expires)
	}
	p, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Subject != "sub-1" || p.Email != "ada@example.com" || p.Name != "Ada" {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.ID() != "sub-1" {
		t.Fatalf("ID = %q", p.ID())
	}
}

func TestSessionRejectsForeignSecret(t *testing.T) {
	a := NewSessionManager([]byte("secret-a"), time.Hour, false)
	b := NewSessionManager([]byte("secret-b"), time.Hour, false)
	token, _, err := a.Issue(Principal{Subject: "sub-1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.Verify(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}

func TestSessionRejectsExpired(t *testing.T) {
	m := NewSessionManager([]byte("secret"), time.Minute, false)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := m.Issue(Principal{Subject: "sub-1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	m.now = time.Now
	if _, err := m.Verify(token); err == nil {
		t.Fatal("expired token was accepted")
	}
}

func TestSessionCookie(t *testing.T) {
	m := NewSessionManager([]byte("secret"), 7*24*time.Hour, true)
	token, expires, err := m.Issue(Principal{Subject: "sub-1", Email: "a@b.c"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	rec := httptest.NewRecorder()
	m.SetCookie(rec, token, expires)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies", len(cookies))
	}
	c := cookies[0]
	if c.Name != SessionCookieName || !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	p, err := m.FromRequest(req)
	if err != nil {
		t.Fatalf("FromRequest: %v", err)
	}
	if p.Email != "a@b.c" {
		t.Fatalf("email = %q", p.Email)
	}

	if _, err := m.FromRequest(httptest.NewRequest(http.MethodGet, "/", nil)); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}

	rec = httptest.NewRecorder()
	m.ClearCookie(rec)
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 || c.Value != "" {
		t.Fatalf("cookie not cleared: %+v", c)
	}
}

func TestPrincipalContext(t *testing.T) {
	if PrincipalFrom(context.Background()) != nil {
		t.Fatal("empty context returned a principal")
	}
	ctx := WithPrincipal(context.Background(), &Principal{Subject: "x"})
	if p := PrincipalFrom(ctx); p == nil || p.Subject != "x" {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func signGoogle(t *testing.T, key *rsa.PrivateKey, claims googleClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = "test"
	s, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestGoogleVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	v := newGoogleVerifier(func(*jwt.Token) (any, error) { return &key.PublicKey, nil }, "client-1")

	valid := func() googleClaims {
		return googleClaims{
			Email:   "ada@example.com",
			Name:    "Ada",
			Picture: "https://example.com/ada.png",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "https://accounts.google.com",
				Subject:   "1234",
				Audience:  jwt.ClaimStrings{"client-1"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}
	}

	id, err := v.Verify(context.Background(), signGoogle(t, key, valid()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Subject != "1234" || id.Email != "ada@example.com" || id.Picture == "" {
		t.Fatalf("unexpected identity %+v", id)
	}

	bareIssuer := valid()
	bareIssuer.Issuer = "accounts.google.com"
	if _, err := v.Verify(context.Background(), signGoogle(t, key, bareIssuer)); err != nil {
		t.Fatalf("bare issuer rejected: %v", err)
	}

	cases := map[string]string{
		"wrong key": signGoogle(t, other, valid()),
		"garbage":   "not-a-jwt",
	}
	wrongAud := valid()
	wrongAud.Audience = jwt.ClaimStrings{"someone-else"}
	cases["wrong audience"] = signGoogle(t, key, wrongAud)
	wrongIss := valid()
	wrongIss.Issuer = "https://evil.example.com"
	cases["wrong issuer"] = signGoogle(t, key, wrongIss)
	expired := valid()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	cases["expired"] = signGoogle(t, key, expired)
	noSub := valid()
	noSub.Subject = ""
	cases["missing sub"] = signGoogle(t, key, noSub)

	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), token); err == nil {
				t.Fatal("expected verification failure")
			}
		})
	}
}
