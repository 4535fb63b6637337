// Package grant issues and verifies signed content access grants.
//
// A grant is an EdDSA JWT proving that a user was allowed to view one
// content item. Edge caches and content renderers verify it with the public
// key alone, without calling back into the membership service.
package grant

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/paywall/internal/platform/config"
	apperrors "github.com/louisbranch/paywall/internal/platform/errors"
	"github.com/louisbranch/paywall/internal/platform/id"
)

// grantEnv holds raw env values before post-parse validation.
type grantEnv struct {
	Issuer     string        `env:"ISSUER"      envDefault:"paywall"`
	Audience   string        `env:"AUDIENCE"    envDefault:"content"`
	PrivateKey string        `env:"PRIVATE_KEY"`
	PublicKey  string        `env:"PUBLIC_KEY"`
	TTL        time.Duration `env:"TTL"         envDefault:"15m"`
}

// Config defines how grants are signed and verified. A config without a
// private key can only verify.
type Config struct {
	Issuer     string
	Audience   string
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	TTL        time.Duration
	Now        func() time.Time
}

// CanSign reports whether the config holds a signing key.
func (c Config) CanSign() bool {
	return c.Issuer != "" && c.Audience != "" && len(c.PrivateKey) == ed25519.PrivateKeySize && c.TTL > 0
}

// CanVerify reports whether the config holds a verification key.
func (c Config) CanVerify() bool {
	return c.Issuer != "" && c.Audience != "" && len(c.PublicKey) == ed25519.PublicKeySize
}

// LoadConfigFromEnv reads PAYWALL_GRANT_* variables. It returns false when
// no key is configured, which disables grants.
func LoadConfigFromEnv(now func() time.Time) (Config, bool, error) {
	var raw grantEnv
	if err := config.ParseEnvWithPrefix(&raw, "GRANT_"); err != nil {
		return Config{}, false, fmt.Errorf("parse grant env: %w", err)
	}
	privateKey := strings.TrimSpace(raw.PrivateKey)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if privateKey == "" && publicKey == "" {
		return Config{}, false, nil
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	if issuer == "" {
		return Config{}, false, fmt.Errorf("PAYWALL_GRANT_ISSUER is required")
	}
	if audience == "" {
		return Config{}, false, fmt.Errorf("PAYWALL_GRANT_AUDIENCE is required")
	}
	if raw.TTL <= 0 {
		return Config{}, false, fmt.Errorf("grant ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	cfg := Config{Issuer: issuer, Audience: audience, TTL: raw.TTL, Now: now}

	if privateKey != "" {
		keyBytes, err := decodeBase64(privateKey)
		if err != nil {
			return Config{}, false, fmt.Errorf("decode grant private key: %w", err)
		}
		if len(keyBytes) != ed25519.PrivateKeySize {
			return Config{}, false, fmt.Errorf("grant private key must be %d bytes", ed25519.PrivateKeySize)
		}
		cfg.PrivateKey = ed25519.PrivateKey(keyBytes)
		cfg.PublicKey = cfg.PrivateKey.Public().(ed25519.PublicKey)
	}
	if publicKey != "" {
		keyBytes, err := decodeBase64(publicKey)
		if err != nil {
			return Config{}, false, fmt.Errorf("decode grant public key: %w", err)
		}
		if len(keyBytes) != ed25519.PublicKeySize {
			return Config{}, false, fmt.Errorf("grant public key must be %d bytes", ed25519.PublicKeySize)
		}
		if cfg.PublicKey != nil && !cfg.PublicKey.Equal(ed25519.PublicKey(keyBytes)) {
			return Config{}, false, fmt.Errorf("grant public key does not match private key")
		}
		cfg.PublicKey = ed25519.PublicKey(keyBytes)
	}
	return cfg, true, nil
}

// Request names the access being granted.
type Request struct {
	UserID    string
	ContentID string
	LevelID   string
	// MemberExpiresAt caps the grant lifetime; zero means no cap.
	MemberExpiresAt time.Time
}

// Claims captures validated grant claims.
type Claims struct {
	Issuer    string
	Audience  []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	JWTID     string
	UserID    string
	ContentID string
	LevelID   string
}

// grantClaims is the internal claims type used for JWT encoding.
type grantClaims struct {
	jwt.RegisteredClaims
	ContentID string `json:"content_id"`
	LevelID   string `json:"level_id,omitempty"`
}

// Issue signs a grant for req. The expiration is the earlier of now+TTL and
// the member's expiration.
func Issue(req Request, cfg Config) (string, Claims, error) {
	if !cfg.CanSign() {
		return "", Claims{}, apperrors.New(apperrors.CodeGrantNotConfigured, "grant signer is not configured")
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.ContentID) == "" {
		return "", Claims{}, errors.New("grant user and content are required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	jti, err := id.NewID()
	if err != nil {
		return "", Claims{}, fmt.Errorf("generate grant id: %w", err)
	}

	now := cfg.Now().UTC().Truncate(time.Second)
	exp := now.Add(cfg.TTL)
	if !req.MemberExpiresAt.IsZero() && req.MemberExpiresAt.Before(exp) {
		exp = req.MemberExpiresAt.UTC().Truncate(time.Second)
	}
	if !exp.After(now) {
		return "", Claims{}, apperrors.New(apperrors.CodeGrantExpired, "membership expires before the grant would start")
	}

	claims := grantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   req.UserID,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
		ContentID: req.ContentID,
		LevelID:   req.LevelID,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign grant: %w", err)
	}
	return token, Claims{
		Issuer:    cfg.Issuer,
		Audience:  []string{cfg.Audience},
		IssuedAt:  now,
		ExpiresAt: exp,
		JWTID:     jti,
		UserID:    req.UserID,
		ContentID: req.ContentID,
		LevelID:   req.LevelID,
	}, nil
}

// Validate verifies a grant token and that it was issued for contentID.
func Validate(token string, contentID string, cfg Config) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant is required")
	}
	if !cfg.CanVerify() {
		return Claims{}, apperrors.New(apperrors.CodeGrantNotConfigured, "grant verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	var parsed grantClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(token *jwt.Token) (any, error) {
		return cfg.PublicKey, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != cfg.Issuer {
		return Claims{}, mismatch("issuer")
	}
	if !audienceContains(parsed.Audience, cfg.Audience) {
		return Claims{}, mismatch("audience")
	}
	if parsed.ID == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant jti is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant exp is required")
	}

	now := cfg.Now().UTC()
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(now) {
		return Claims{}, apperrors.New(apperrors.CodeGrantExpired, "grant is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time) {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant not active yet")
	}
	if strings.TrimSpace(parsed.Subject) == "" {
		return Claims{}, apperrors.New(apperrors.CodeGrantInvalid, "grant subject is required")
	}
	if strings.TrimSpace(parsed.ContentID) == "" || parsed.ContentID != contentID {
		return Claims{}, mismatch("content_id")
	}

	claims := Claims{
		Issuer:    parsed.Issuer,
		Audience:  []string(parsed.Audience),
		ExpiresAt: exp,
		JWTID:     parsed.ID,
		UserID:    parsed.Subject,
		ContentID: parsed.ContentID,
		LevelID:   parsed.LevelID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

func mismatch(field string) error {
	return apperrors.WithMetadata(
		apperrors.CodeGrantMismatch,
		"grant "+field+" mismatch",
		map[string]string{"Field": field},
	)
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.Wrap(apperrors.CodeGrantInvalid, "grant signature is invalid", err)
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.Wrap(apperrors.CodeGrantInvalid, "grant alg is invalid", err)
	}
	return apperrors.Wrap(apperrors.CodeGrantInvalid, "grant is invalid", err)
}

func audienceContains(aud jwt.ClaimStrings, value string) bool {
	for _, item := range aud {
		if item == value {
			return true
		}
	}
	return false
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
