package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromecollective/marketplace-backend/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	jwtSigningMethod = jwt.SigningMethodHS256
	rsaSigningMethod = jwt.SigningMethodRS256
)

const clockLeeway = 30 * time.Second

// ErrMissingSubject is returned for tokens that do not identify a caller.
var ErrMissingSubject = errors.New("token subject is required")

// MintAccessToken issues a signed JWT for payload. Production tokens come from the
// identity provider; this is used by local tooling and tests.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	if cfg.Secret == "" {
		return "", fmt.Errorf("jwt secret is required")
	}
	if cfg.Issuer == "" {
		return "", fmt.Errorf("jwt issuer is required")
	}
	if cfg.ExpirationMinutes <= 0 {
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	}
	if strings.TrimSpace(payload.Subject) == "" {
		return "", ErrMissingSubject
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		Email: payload.Email,
		Name:  payload.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Subject,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// Verifier checks access tokens. With a JWKS URL configured it accepts RS256 tokens
// signed by the identity provider's key set; otherwise HS256 tokens signed with the
// shared secret.
type Verifier struct {
	cfg  config.JWTConfig
	jwks *JWKS
}

func NewVerifier(cfg config.JWTConfig) *Verifier {
	v := &Verifier{cfg: cfg}
	if url := strings.TrimSpace(cfg.JWKSURL); url != "" {
		v.jwks = NewJWKS(url, cfg.JWKSTimeout, nil)
	}
	return v
}

// Parse validates the JWT string and returns typed claims. Issuer is always checked;
// audience only when configured. ctx bounds any key set fetch.
func (v *Verifier) Parse(ctx context.Context, tokenString string) (*AccessTokenClaims, error) {
	var (
		keyfunc jwt.Keyfunc
		method  string
	)
	switch {
	case v.jwks != nil:
		keyfunc = v.jwks.Keyfunc(ctx)
		method = rsaSigningMethod.Alg()
	case v.cfg.Secret != "":
		secret := []byte(v.cfg.Secret)
		keyfunc = func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return secret, nil
		}
		method = jwtSigningMethod.Alg()
	default:
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{method}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	}
	if v.cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.cfg.Audience))
	}

	claims := &AccessTokenClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, keyfunc, opts...); err != nil {
		return nil, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}

// ParseAccessToken is a one-shot Parse with a fresh Verifier.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	return NewVerifier(cfg).Parse(context.Background(), tokenString)
}
