package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultJWKSTimeout = 5 * time.Second
	// unknown kids trigger a refetch at most this often
	jwksMinRefresh = time.Minute
	maxJWKSBytes   = 1 << 20
)

// ErrUnknownKeyID is returned when the key set has no key for a token's kid, even
// after a refresh.
var ErrUnknownKeyID = errors.New("no signing key for kid")

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKS resolves RSA verification keys by kid from an identity provider's key set. Keys
// are cached; a miss refetches the set, bounded by timeout.
type JWKS struct {
	url     string
	client  *http.Client
	timeout time.Duration
	now     func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

func NewJWKS(url string, timeout time.Duration, client *http.Client) *JWKS {
	if timeout <= 0 {
		timeout = defaultJWKSTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &JWKS{
		url:     url,
		client:  client,
		timeout: timeout,
		now:     time.Now,
		keys:    map[string]*rsa.PublicKey{},
	}
}

// Key returns the public key for kid, fetching the key set when it is not cached.
func (j *JWKS) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if key, ok := j.keys[kid]; ok {
		return key, nil
	}
	if !j.fetchedAt.IsZero() && j.now().Sub(j.fetchedAt) < jwksMinRefresh {
		return nil, fmt.Errorf("%w %q", ErrUnknownKeyID, kid)
	}
	if err := j.refresh(ctx); err != nil {
		return nil, err
	}
	if key, ok := j.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownKeyID, kid)
}

// Keyfunc adapts the key set to jwt parsing. Only RS256 tokens carrying a kid resolve.
func (j *JWKS) Keyfunc(ctx context.Context) jwt.Keyfunc {
	return func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != rsaSigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("token header has no kid")
		}
		return j.Key(ctx, kid)
	}
}

// refresh must be called with mu held.
func (j *JWKS) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.url, nil)
	if err != nil {
		return fmt.Errorf("build jwks request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var set struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJWKSBytes)).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		if k.Alg != "" && k.Alg != rsaSigningMethod.Alg() {
			continue
		}
		pub, err := rsaPublicKey(k.N, k.E)
		if err != nil {
			return fmt.Errorf("jwks key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}

	j.keys = keys
	j.fetchedAt = j.now()
	return nil
}

func rsaPublicKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if len(nb) == 0 || !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("invalid rsa key parameters")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
