// Package marketplace issues and checks the signed tokens an external
// marketplace presents to take up a listing.
package marketplace

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultClaimTTL is the default token lifetime.
const DefaultClaimTTL = 72 * time.Hour

const claimSubject = "listing-claim"

// ErrInvalidClaim is returned for tokens that fail validation.
var ErrInvalidClaim = errors.New("invalid claim token")

// Claims represents the JWT claims of a listing claim token.
type Claims struct {
	ListingID int64 `json:"listing_id"`
	jwt.RegisteredClaims
}

// IssueClaim creates a token that entitles its bearer to claim one listing.
func IssueClaim(secret string, listingID int64, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("issuing claim: empty secret")
	}
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	jti, err := generateJTI()
	if err != nil {
		return "", fmt.Errorf("generating JTI: %w", err)
	}

	now := time.Now()
	claims := Claims{
		ListingID: listingID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   claimSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// ValidateClaim parses and validates a claim token, returning the claims.
func ValidateClaim(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithSubject(claimSubject))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}
	return claims, nil
}

// GenerateSecret returns a random hex secret for signing claims.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating claim secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// generateJTI creates a random token ID.
func generateJTI() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
