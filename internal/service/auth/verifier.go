package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domrepo "FlareCast/internal/domain/repository"

	"github.com/labstack/echo/v4"
)

// Verifier gates the pipeline trigger endpoint. Implementations decide
// whether the request may start a run.
type Verifier interface {
	Verify(c echo.Context) error
}

// AllowAll accepts every request. For development and tests only.
type AllowAll struct{}

func (AllowAll) Verify(echo.Context) error { return nil }

// TokenVerifier checks the bearer token the scheduler attaches to trigger
// calls. It validates the OIDC claims (issuer, audience, expiry) of the
// token payload; signature verification happens at the ingress gateway
// before the request reaches this service.
type TokenVerifier struct {
	Issuer   string
	Audience string
	now      func() time.Time
}

func NewTokenVerifier(issuer, audience string) *TokenVerifier {
	return &TokenVerifier{Issuer: issuer, Audience: audience, now: time.Now}
}

type tokenClaims struct {
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
	Expiry   int64  `json:"exp"`
}

func (v *TokenVerifier) Verify(c echo.Context) error {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return fmt.Errorf("%w: missing bearer token", domrepo.ErrAuthRejected)
	}
	token := strings.TrimPrefix(header, "Bearer ")

	claims, err := parseClaims(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domrepo.ErrAuthRejected, err)
	}
	if v.Issuer != "" && claims.Issuer != v.Issuer {
		return fmt.Errorf("%w: unexpected issuer", domrepo.ErrAuthRejected)
	}
	if v.Audience != "" && claims.Audience != v.Audience {
		return fmt.Errorf("%w: unexpected audience", domrepo.ErrAuthRejected)
	}
	if claims.Expiry > 0 && v.now().Unix() >= claims.Expiry {
		return fmt.Errorf("%w: token expired", domrepo.ErrAuthRejected)
	}
	return nil
}

func parseClaims(token string) (*tokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &claims, nil
}
