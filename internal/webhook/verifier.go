package webhook

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/morsecodescott/budget-tracker-app-sub000/internal/plaid"
	"github.com/patrickmn/go-cache"
)

// HeaderVerification carries the signed JWT of a webhook.
const HeaderVerification = "Plaid-Verification"

// maxAge is how old a webhook may be before it is rejected.
const maxAge = 5 * time.Minute

var ErrVerification = errors.New("webhook verification failed")

// KeySource fetches the public keys Plaid signs webhooks with.
type KeySource interface {
	WebhookVerificationKeyGet(ctx context.Context, keyID string) (*plaid.WebhookVerificationKeyResponse, error)
}

type bodyClaims struct {
	RequestBodySHA256 string `json:"request_body_sha256"`
	jwt.RegisteredClaims
}

// Verifier checks that a webhook was sent by Plaid.
type Verifier struct {
	keys  KeySource
	cache *cache.Cache
	now   func() time.Time
}

func NewVerifier(keys KeySource) *Verifier {
	return &Verifier{
		keys:  keys,
		cache: cache.New(24*time.Hour, time.Hour),
		now:   time.Now,
	}
}

// Verify validates the JWT from the Plaid-Verification header against the
// raw request body.
func (v *Verifier) Verify(ctx context.Context, token string, body []byte) error {
	if token == "" {
		return fmt.Errorf("%w: missing %s header", ErrVerification, HeaderVerification)
	}

	claims := &bodyClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok || kid == "" {
			return nil, errors.New("token has no key id")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVerification, err)
	}

	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > maxAge {
		return fmt.Errorf("%w: webhook is older than %s", ErrVerification, maxAge)
	}

	sum := sha256.Sum256(body)
	if subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(claims.RequestBodySHA256)) != 1 {
		return fmt.Errorf("%w: body hash mismatch", ErrVerification)
	}

	return nil
}

func (v *Verifier) key(ctx context.Context, kid string) (*ecdsa.PublicKey, error) {
	if cached, ok := v.cache.Get(kid); ok {
		return cached.(*ecdsa.PublicKey), nil
	}

	resp, err := v.keys.WebhookVerificationKeyGet(ctx, kid)
	if err != nil {
		return nil, fmt.Errorf("fetching verification key %s: %w", kid, err)
	}

	if resp.Key.ExpiredAt != nil {
		return nil, fmt.Errorf("verification key %s is expired", kid)
	}

	key, err := publicKey(resp.Key)
	if err != nil {
		return nil, err
	}

	v.cache.SetDefault(kid, key)
	return key, nil
}

func publicKey(jwk plaid.JWK) (*ecdsa.PublicKey, error) {
	if jwk.Kty != "EC" || jwk.Crv != "P-256" {
		return nil, fmt.Errorf("unsupported key type %s/%s", jwk.Kty, jwk.Crv)
	}

	x, err := base64.RawURLEncoding.DecodeString(jwk.X)
	if err != nil {
		return nil, fmt.Errorf("invalid x coordinate: %w", err)
	}

	y, err := base64.RawURLEncoding.DecodeString(jwk.Y)
	if err != nil {
		return nil, fmt.Errorf("invalid y coordinate: %w", err)
	}

	key := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}

	if !key.Curve.IsOnCurve(key.X, key.Y) {
		return nil, errors.New("verification key is not on the curve")
	}

	return key, nil
}
