package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domrepo "FlareCast/internal/domain/repository"

	"github.com/labstack/echo/v4"
)

func makeToken(t *testing.T, iss, aud string, exp int64) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"iss": iss, "aud": aud, "exp": exp})
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	body := base64.RawURLEncoding.EncodeToString(payload)
	return fmt.Sprintf("%s.%s.sig", header, body)
}

func contextWithAuth(token string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/run-flare-prediction-pipeline", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return e.NewContext(req, httptest.NewRecorder())
}

func TestAllowAll(t *testing.T) {
	if err := (AllowAll{}).Verify(contextWithAuth("")); err != nil {
		t.Fatalf("AllowAll rejected: %v", err)
	}
}

func TestTokenVerifier(t *testing.T) {
	v := NewTokenVerifier("https://accounts.example.com", "flarecast")
	future := time.Now().Add(time.Hour).Unix()

	cases := []struct {
		name  string
		token string
		ok    bool
	}{
		{"valid", makeToken(t, "https://accounts.example.com", "flarecast", future), true},
		{"missing", "", false},
		{"wrong issuer", makeToken(t, "https://evil.example.com", "flarecast", future), false},
		{"wrong audience", makeToken(t, "https://accounts.example.com", "other", future), false},
		{"expired", makeToken(t, "https://accounts.example.com", "flarecast", time.Now().Add(-time.Hour).Unix()), false},
		{"malformed", "not.a.jwt.at.all", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(contextWithAuth(tc.token))
			if tc.ok && err != nil {
				t.Fatalf("expected accept, got %v", err)
			}
			if !tc.ok {
				if !errors.Is(err, domrepo.ErrAuthRejected) {
					t.Fatalf("expected ErrAuthRejected, got %v", err)
				}
			}
		})
	}
}
