// Package auth verifies the bearer tokens issued by the upstream identity
// provider and turns them into a caller identity for the access engine.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dispatchdesk.io/internal/access"
	"dispatchdesk.io/internal/clock"
)

const defaultIssuer = "dispatchdesk"

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrMissingSecret means no signing secret was configured.
	ErrMissingSecret = errors.New("auth: secret is not configured")
)

// Claims carried by caller tokens. Subject is the identity provider's
// reference for the operator.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Caller is a verified request identity.
type Caller struct {
	ExternalRef string
	Email       string
	TokenID     string
}

// Identity converts the caller into the resolver input.
func (c Caller) Identity() access.Identity {
	return access.Identity{ExternalRef: c.ExternalRef, Email: c.Email}
}

// Verifier signs and verifies HS256 caller tokens.
type Verifier struct {
	secret []byte
	issuer string
	clock  clock.Clock
}

// VerifierOption configures Verifier behavior.
type VerifierOption func(*Verifier)

// WithIssuer overrides the expected issuer claim.
func WithIssuer(issuer string) VerifierOption {
	return func(v *Verifier) {
		if s := strings.TrimSpace(issuer); s != "" {
			v.issuer = s
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(c clock.Clock) VerifierOption {
	return func(v *Verifier) {
		if c != nil {
			v.clock = c
		}
	}
}

// NewVerifier returns a Verifier using secret.
func NewVerifier(secret string, opts ...VerifierOption) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	v := &Verifier{secret: []byte(secret), issuer: defaultIssuer, clock: clock.Real()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// GenerateToken signs a token for the given external reference and email.
// Used by tooling and tests; production tokens come from the identity
// provider.
func (v *Verifier) GenerateToken(externalRef, email string, ttl time.Duration) (string, error) {
	externalRef = strings.TrimSpace(externalRef)
	email = access.NormalizeEmail(email)
	if externalRef == "" && email == "" {
		return "", errors.New("auth: subject or email is required")
	}
	if ttl <= 0 {
		return "", errors.New("auth: ttl must be greater than zero")
	}
	now := v.clock.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   externalRef,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and required claims.
func (v *Verifier) Verify(token string) (Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Caller{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.clock.Now), jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return Caller{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Caller{}, ErrInvalidToken
	}
	if err := v.validateClaims(claims); err != nil {
		return Caller{}, ErrInvalidToken
	}
	return Caller{
		ExternalRef: strings.TrimSpace(claims.Subject),
		Email:       access.NormalizeEmail(claims.Email),
		TokenID:     claims.ID,
	}, nil
}

func (v *Verifier) validateClaims(claims *Claims) error {
	if strings.TrimSpace(claims.Subject) == "" && strings.TrimSpace(claims.Email) == "" {
		return errors.New("subject and email missing")
	}
	if claims.IssuedAt == nil {
		return errors.New("issued-at missing")
	}
	// Allow a small clock skew of 5 seconds when validating issued-at.
	if claims.IssuedAt.Time.After(v.clock.Now().Add(5 * time.Second)) {
		return errors.New("token issued in the future")
	}
	return nil
}
