package gateway

import (
	"errors"
	"net/http/httptest"
	"testing"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

func TestStaticTokenAuthValid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{
		{Token: "secret-123", UserID: "user-7", Name: "ada"},
	})

	info, err := auth.Authenticate("secret-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.Name != "ada" || info.UserID != "user-7" {
		t.Errorf("info = %+v", info)
	}
}

func TestStaticTokenAuthUserDefaultsToName(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "t", Name: "bob"}})
	info, err := auth.Authenticate("t")
	if err != nil {
		t.Fatal(err)
	}
	if info.UserID != "bob" {
		t.Errorf("UserID = %q", info.UserID)
	}
}

func TestStaticTokenAuthInvalid(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{
		{Token: "secret-123", UserID: "u1"},
	})

	_, err := auth.Authenticate("wrong-token")
	if !errors.Is(err, domain.ErrGatewayAuthFailed) {
		t.Errorf("err = %v, want ErrGatewayAuthFailed", err)
	}
	if !errors.Is(err, domain.ErrAuthInvalid) {
		t.Errorf("err = %v should match ErrAuthInvalid", err)
	}
}

func TestStaticTokenAuthEmpty(t *testing.T) {
	auth := NewStaticTokenAuth([]config.TokenConfig{{Token: "", UserID: "u1"}})

	if _, err := auth.Authenticate(""); err == nil {
		t.Fatal("empty token must not authenticate")
	}
	if _, err := NewStaticTokenAuth(nil).Authenticate("anything"); err == nil {
		t.Fatal("expected error for empty token list")
	}
}

func TestNewAuthenticator(t *testing.T) {
	if _, ok := NewAuthenticator(config.AuthConfig{}).(NoAuth); !ok {
		t.Error("empty type should disable auth")
	}
	info, _ := NoAuth{}.Authenticate("")
	if info.UserID != LocalUserID {
		t.Errorf("UserID = %q", info.UserID)
	}
	if _, ok := NewAuthenticator(config.AuthConfig{Type: "static"}).(*StaticTokenAuth); !ok {
		t.Error("static type should use the token list")
	}
}

func TestRequestToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=q", nil)
	r.Header.Set("Authorization", "Bearer h")
	if got := requestToken(r); got != "q" {
		t.Errorf("query token = %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer h")
	if got := requestToken(r); got != "h" {
		t.Errorf("bearer token = %q", got)
	}

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	if got := requestToken(r); got != "" {
		t.Errorf("basic auth should be ignored, got %q", got)
	}
}
