package authz

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/luminastudio/booking/internal/platform/id"
)

// SignInput describes one actor token to mint.
type SignInput struct {
	ActorID     string
	Roles       []string
	Permissions []string
	Issuer      string
	Audience    string
	TTL         time.Duration
	Now         func() time.Time
}

// SignActorToken mints an EdDSA actor token. It backs the local token
// utility and tests; production tokens come from the identity layer.
func SignActorToken(key ed25519.PrivateKey, in SignInput) (string, error) {
	if len(key) != ed25519.PrivateKeySize {
		return "", errors.New("signing key is required")
	}
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return "", errors.New("actor id is required")
	}
	if in.Issuer == "" || in.Audience == "" {
		return "", errors.New("issuer and audience are required")
	}
	if in.TTL <= 0 {
		in.TTL = time.Hour
	}
	if in.Now == nil {
		in.Now = time.Now
	}

	jti, err := id.NewID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := in.Now().UTC()
	claims := actorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    in.Issuer,
			Subject:   actorID,
			Audience:  jwt.ClaimStrings{in.Audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(in.TTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
		Roles:       normalizeList(in.Roles),
		Permissions: normalizeList(in.Permissions),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign actor token: %w", err)
	}
	return signed, nil
}
