package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTokenTTL applies when no TTL is configured.
	DefaultAccessTokenTTL = 15 * time.Minute

	// MinSecretLength is the shortest accepted HS256 signing secret.
	MinSecretLength = 32

	issuer = "sipmqtt"
)

// Claims are the JWT claims issued to the settings administrator.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// IssueToken signs an access token for subject.
func IssueToken(subject, secret string, ttl time.Duration) (string, time.Time, error) {
	if len(secret) < MinSecretLength {
		return "", time.Time{}, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := time.Now()
	expires := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		SessionID: uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing access token: %w", err)
	}
	return signed, expires, nil
}

// ParseToken validates signature, expiry and issuer and returns the claims.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return claims, nil
}
