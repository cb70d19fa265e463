// Package authz verifies actor tokens presented at the service boundary.
//
// Tokens are short-lived EdDSA JWTs issued by the studio's identity layer.
// The booking service only verifies them and extracts the acting identity
// with its roles and permission codes; it never issues tokens in production.
package authz

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/luminastudio/booking/internal/platform/errors"
	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// actorTokenEnv holds raw env values before post-parse validation.
type actorTokenEnv struct {
	Issuer    string `env:"LUMINA_ACTOR_TOKEN_ISSUER"`
	Audience  string `env:"LUMINA_ACTOR_TOKEN_AUDIENCE"`
	PublicKey string `env:"LUMINA_ACTOR_TOKEN_PUBLIC_KEY"`
}

// VerifierConfig defines how actor tokens are verified.
type VerifierConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// actorClaims is the internal claims type used for JWT parsing.
type actorClaims struct {
	jwt.RegisteredClaims
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// LoadVerifierConfigFromEnv reads actor token verification configuration.
func LoadVerifierConfigFromEnv(now func() time.Time) (VerifierConfig, error) {
	var raw actorTokenEnv
	if err := env.Parse(&raw); err != nil {
		return VerifierConfig{}, fmt.Errorf("parse actor token env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" {
		return VerifierConfig{}, fmt.Errorf("LUMINA_ACTOR_TOKEN_ISSUER is required")
	}
	if audience == "" {
		return VerifierConfig{}, fmt.Errorf("LUMINA_ACTOR_TOKEN_AUDIENCE is required")
	}
	if publicKey == "" {
		return VerifierConfig{}, fmt.Errorf("LUMINA_ACTOR_TOKEN_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return VerifierConfig{}, fmt.Errorf("decode actor token public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return VerifierConfig{}, fmt.Errorf("actor token public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return VerifierConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// VerifyActorToken verifies a token and returns the acting identity.
func VerifyActorToken(token string, cfg VerifierConfig) (session.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return session.Actor{}, apperrors.New(apperrors.CodeActorTokenInvalid, "actor token is required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Issuer == "" || cfg.Audience == "" || len(cfg.Key) != ed25519.PublicKeySize {
		return session.Actor{}, errors.New("actor token verifier is not configured")
	}

	var parsed actorClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return session.Actor{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return session.Actor{}, apperrors.WithMetadata(
			apperrors.CodeActorTokenInvalid,
			"actor token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return session.Actor{}, apperrors.WithMetadata(
			apperrors.CodeActorTokenInvalid,
			"actor token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return session.Actor{}, apperrors.New(apperrors.CodeActorTokenInvalid, "actor token sub is required")
	}
	if parsed.ExpiresAt == nil {
		return session.Actor{}, apperrors.New(apperrors.CodeActorTokenInvalid, "actor token exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return session.Actor{}, apperrors.New(apperrors.CodeActorTokenExpired, "actor token is expired")
	}
	if parsed.NotBefore != nil {
		nbf := parsed.NotBefore.Time.UTC()
		if now.Before(nbf) {
			return session.Actor{}, apperrors.New(apperrors.CodeActorTokenInvalid, "actor token not active yet")
		}
	}

	return session.Actor{
		ID:          parsed.Subject,
		Roles:       normalizeList(parsed.Roles),
		Permissions: normalizeList(parsed.Permissions),
	}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeActorTokenInvalid, "actor token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeActorTokenInvalid, "actor token alg is invalid")
	}
	return apperrors.New(apperrors.CodeActorTokenInvalid, "actor token is invalid")
}

// audienceContains reports whether the audience list contains the given value.
func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
