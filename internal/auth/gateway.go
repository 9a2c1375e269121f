package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/observability"
)

// DefaultIssuer is the iss claim expected when none is configured.
const DefaultIssuer = "zoho-books-gateway"

// GatewayClaims represents the claims in a gateway JWT.
type GatewayClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

type jwksKey struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
}

type jwksResponse struct {
	Keys []jwksKey `json:"keys"`
}

// GatewayVerifier verifies gateway JWTs using a JWKS document of Ed25519 keys.
type GatewayVerifier struct {
	jwksURL   string
	issuer    string
	client    *http.Client
	mu        sync.RWMutex
	keys      map[string]ed25519.PublicKey
	fetchedAt time.Time
	cacheTTL  time.Duration
	log       *zap.Logger
}

// NewGatewayVerifier creates a verifier that fetches public keys from jwksURL
// and requires tokens issued by issuer.
func NewGatewayVerifier(jwksURL, issuer string) *GatewayVerifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &GatewayVerifier{
		jwksURL:  jwksURL,
		issuer:   issuer,
		client:   &http.Client{Timeout: 10 * time.Second},
		keys:     make(map[string]ed25519.PublicKey),
		cacheTTL: 5 * time.Minute,
		log:      observability.Logger().Named("gateway"),
	}
}

// VerifyToken verifies a gateway JWT and returns the claims.
func (v *GatewayVerifier) VerifyToken(ctx context.Context, tokenString string) (*GatewayClaims, error) {
	// Parse without verification to get kid from header
	unverified, _, err := jwt.NewParser().ParseUnverified(tokenString, &GatewayClaims{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse token")
	}

	kid, ok := unverified.Header["kid"].(string)
	if !ok || kid == "" {
		return nil, errors.New("missing kid in token header")
	}

	key, err := v.getKey(ctx, kid)
	if err != nil {
		return nil, err
	}

	claims := &GatewayClaims{}
	_, err = jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithLeeway(5*time.Second), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, "token verification failed")
	}

	return claims, nil
}

// getKey returns the public key for the given kid, fetching JWKS if cache
// is empty or expired. On unknown kid, forces a refetch (key rotation support).
func (v *GatewayVerifier) getKey(ctx context.Context, kid string) (ed25519.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	expired := time.Since(v.fetchedAt) > v.cacheTTL
	v.mu.RUnlock()

	if ok && !expired {
		return key, nil
	}

	if err := v.fetchJWKS(ctx); err != nil {
		// If we have a cached key, use it even if expired
		if ok {
			v.log.Warn("JWKS refresh failed, using cached key", zap.String("kid", kid), zap.Error(err))
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()

	if !ok {
		return nil, errors.Errorf("key with kid %q not found in JWKS", kid)
	}
	return key, nil
}

func (v *GatewayVerifier) fetchJWKS(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return errors.Wrap(err, "create JWKS request")
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to fetch JWKS from %s", v.jwksURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("JWKS fetch returned status %d", resp.StatusCode)
	}

	var jwks jwksResponse
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return errors.Wrap(err, "failed to decode JWKS")
	}

	keys := make(map[string]ed25519.PublicKey)
	for _, k := range jwks.Keys {
		if k.Kty != "OKP" || k.Crv != "Ed25519" || k.X == "" {
			continue
		}
		xBytes, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			v.log.Warn("failed to decode key", zap.String("kid", k.Kid), zap.Error(err))
			continue
		}
		if len(xBytes) != ed25519.PublicKeySize {
			v.log.Warn("invalid key size", zap.String("kid", k.Kid), zap.Int("size", len(xBytes)))
			continue
		}
		keys[k.Kid] = ed25519.PublicKey(xBytes)
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = time.Now()
	v.mu.Unlock()

	v.log.Info("JWKS refreshed", zap.Int("keys", len(keys)), zap.String("url", v.jwksURL))
	return nil
}
