package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenLifetime is the access token lifetime when none is configured.
	DefaultTokenLifetime = 300 * time.Minute

	// DefaultAlgorithm is the signing algorithm when none is configured.
	DefaultAlgorithm = "HS256"
)

// TokenConfig configures a TokenService.
type TokenConfig struct {
	// Secret is the shared HMAC key. Required.
	Secret []byte

	// Algorithm is one of HS256, HS384 or HS512. Empty means DefaultAlgorithm.
	Algorithm string

	// Lifetime is added to the issue time to compute exp.
	Lifetime time.Duration

	// Issuer is written to the iss claim and, when set, required on verify.
	Issuer string
}

// Claims is the decoded identity carried by a verified access token.
type Claims struct {
	Subject   string
	Roles     []Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type accessClaims struct {
	jwt.RegisteredClaims
	Roles []Role `json:"roles"`
}

// TokenService issues and verifies signed access tokens.
type TokenService struct {
	secret   []byte
	method   *jwt.SigningMethodHMAC
	lifetime time.Duration
	issuer   string
	parser   *jwt.Parser
}

// NewTokenService validates cfg and returns a TokenService. An empty secret or
// an algorithm outside the HMAC family is a configuration error.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	alg := strings.TrimSpace(cfg.Algorithm)
	if alg == "" {
		alg = DefaultAlgorithm
	}
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	lifetime := cfg.Lifetime
	if lifetime <= 0 {
		lifetime = DefaultTokenLifetime
	}

	return &TokenService{
		secret:   slices.Clone(cfg.Secret),
		method:   method,
		lifetime: lifetime,
		issuer:   cfg.Issuer,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Algorithm returns the configured signing algorithm.
func (s *TokenService) Algorithm() string {
	return s.method.Alg()
}

// Lifetime returns the configured token lifetime.
func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

// Issue signs a token for subject carrying roles, expiring at now+lifetime.
func (s *TokenService) Issue(subject string, roles []Role, now time.Time) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("auth: token subject is required")
	}
	if len(roles) == 0 {
		return "", errors.New("auth: token requires at least one role")
	}

	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
		},
		Roles: slices.Clone(roles),
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks token and returns its claims.
//
// The signature is checked before the claims segment is decoded, so any
// change to the claims yields ErrTokenTampered. A header naming a different
// algorithm is also ErrTokenTampered. Unparseable input or missing claims is
// ErrTokenMalformed, and a token is ErrTokenExpired once now reaches exp.
func (s *TokenService) Verify(token string, now time.Time) (Claims, error) {
	// Header and signature never contain a dot, so anything between the first
	// and last dot is the signed claims segment.
	first := strings.IndexByte(token, '.')
	last := strings.LastIndexByte(token, '.')
	if first < 0 || first == last {
		return Claims{}, fmt.Errorf("%w: expected 3 segments", ErrTokenMalformed)
	}
	headerSeg, signingString, sigSeg := token[:first], token[:last], token[last+1:]

	var header struct {
		Alg string `json:"alg"`
	}
	rawHeader, err := s.parser.DecodeSegment(headerSeg)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: header encoding", ErrTokenMalformed)
	}
	if err := json.Unmarshal(rawHeader, &header); err != nil {
		return Claims{}, fmt.Errorf("%w: header json", ErrTokenMalformed)
	}
	if header.Alg != s.method.Alg() {
		return Claims{}, fmt.Errorf("%w: unexpected algorithm %q", ErrTokenTampered, header.Alg)
	}

	sig, err := s.parser.DecodeSegment(sigSeg)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: signature encoding", ErrTokenMalformed)
	}
	if err := s.method.Verify(signingString, sig, s.secret); err != nil {
		return Claims{}, ErrTokenTampered
	}

	var claims accessClaims
	if _, err := s.parser.ParseWithClaims(token, &claims, s.keyFunc); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}
	if len(claims.Roles) == 0 {
		return Claims{}, fmt.Errorf("%w: missing roles", ErrTokenMalformed)
	}
	if claims.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	if s.issuer != "" && claims.Issuer != s.issuer {
		return Claims{}, fmt.Errorf("%w: unexpected issuer", ErrTokenMalformed)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return Claims{}, ErrTokenExpired
	}

	out := Claims{
		Subject:   claims.Subject,
		Roles:     claims.Roles,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	return out, nil
}

func (s *TokenService) keyFunc(*jwt.Token) (any, error) {
	return s.secret, nil
}
