// Package auth provides bearer-token issuance and validation, the request
// gates built on top of it, and password hashing.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. Client POSTs email + password to /api/login
//  2. Server verifies the bcrypt hash and issues a signed token
//  3. Client sends "Authorization: Bearer <token>" on every protected call
//  4. RequireAuth decodes the token and puts the Identity in the request context
//  5. RequireAdmin (admin routes only) checks the isAdmin claim
//
// The server never stores tokens. Everything the gates need (subject, role,
// expiry) is inside the signed payload, so validation is pure computation and
// a token stays valid until it expires. There is no revocation list.
//
// TOKEN STRUCTURE:
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header:  {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<xid>","isAdmin":false,"iat":...,"exp":...,"iss":"disaster-ready"}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "disaster-ready"

// Decode failures. Callers outside this package should not branch on these
// to produce different client responses; the gate collapses all of them
// into a single "unauthenticated" reply.
var (
	ErrInvalidSignature = errors.New("auth: invalid token signature")
	ErrMalformed        = errors.New("auth: malformed token")
	ErrExpired          = errors.New("auth: token expired")
)

// TokenService issues and decodes identity tokens.
//
// It holds the HMAC secret used to sign and verify tokens. The secret is
// process-wide and fixed at construction.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret and token
// lifetime. The secret should be at least 32 bytes of random data in
// production, for example JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Claims is the decoded, trusted content of a token.
type Claims struct {
	UserID    string
	IsAdmin   bool
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the wire payload. The role flag travels as a private
// "isAdmin" claim next to the registered ones; the user id is "sub".
type tokenClaims struct {
	IsAdmin bool `json:"isAdmin"`
	jwt.RegisteredClaims
}

// Issue signs a token for the user with the service's default lifetime.
func (s *TokenService) Issue(userID string, isAdmin bool) (string, error) {
	return s.IssueWithTTL(userID, isAdmin, s.ttl)
}

// IssueWithTTL signs a token with a custom lifetime. A negative ttl produces
// an already-expired token, which is useful in tests.
func (s *TokenService) IssueWithTTL(userID string, isAdmin bool, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", errors.New("auth: cannot issue token without a subject")
	}

	now := s.now()
	c := tokenClaims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Decode verifies and parses a token.
//
// The signature is checked before any claim is looked at, so an expired
// token signed with the wrong key reports ErrInvalidSignature, not
// ErrExpired. Algorithm is pinned to HS256 to block "alg: none" and
// key-confusion tricks.
//
// Returns one of ErrInvalidSignature, ErrMalformed or ErrExpired (wrapped)
// on failure.
func (s *TokenService) Decode(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", ErrExpired, err)
		default:
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	c, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: unexpected claims type", ErrMalformed)
	}

	if _, err := xid.FromString(c.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject %q is not a valid id", ErrMalformed, c.Subject)
	}

	return &Claims{
		UserID:    c.Subject,
		IsAdmin:   c.IsAdmin,
		IssuedAt:  c.IssuedAt.Time,
		ExpiresAt: c.ExpiresAt.Time,
	}, nil
}
