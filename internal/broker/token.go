package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"zohobooks-mcp/server/internal/apperrors"
	"zohobooks-mcp/server/internal/observability"
)

// DefaultTokenURL is the Zoho accounts endpoint for the India data center.
const DefaultTokenURL = "https://accounts.zoho.in/oauth/v2/token"

// tokenRefreshBuffer is the number of seconds before expiry to trigger refresh
// when token caching is enabled.
const tokenRefreshBuffer = 5 * 60

// defaultExpiresIn applies when the token response omits expires_in.
const defaultExpiresIn = 3600

const noRefreshTokenMsg = "No refresh token available. Please restart the application to initiate the OAuth flow."

// Credentials is the broker's view of the current OAuth state.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // unix seconds, 0 until the first refresh
}

// TokenBroker exchanges the Zoho refresh token for short-lived access tokens.
// Concurrent callers share one in-flight exchange, so a rotated refresh token
// is never overwritten by a racing request.
type TokenBroker struct {
	clientID     string
	clientSecret string
	tokenURL     string
	client       *http.Client
	cacheTokens  bool
	now          func() time.Time

	mu    sync.Mutex
	creds Credentials

	group singleflight.Group
}

// Option configures a TokenBroker.
type Option func(*TokenBroker)

// WithTokenURL points the broker at a different accounts server.
func WithTokenURL(u string) Option {
	return func(b *TokenBroker) { b.tokenURL = u }
}

// WithHTTPClient replaces the default 10s-timeout client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *TokenBroker) { b.client = c }
}

// WithTokenCache makes AccessToken reuse the held token until it is within
// tokenRefreshBuffer of expiry. Without it every call performs an exchange.
func WithTokenCache(enabled bool) Option {
	return func(b *TokenBroker) { b.cacheTokens = enabled }
}

// NewTokenBroker creates a broker holding the given client credentials and refresh token.
func NewTokenBroker(clientID, clientSecret, refreshToken string, opts ...Option) *TokenBroker {
	b := &TokenBroker{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     DefaultTokenURL,
		client:       &http.Client{Timeout: 10 * time.Second},
		now:          time.Now,
		creds:        Credentials{RefreshToken: refreshToken},
	}
	for _, opt := range opts {
		opt(b)
	}
	observability.Logger().Named("broker").Debug("token broker initialized",
		zap.String("token_url", b.tokenURL),
		zap.Bool("cache_tokens", b.cacheTokens),
	)
	return b
}

// AccessToken returns a usable access token, refreshing as the cache policy requires.
func (b *TokenBroker) AccessToken(ctx context.Context) (string, error) {
	if b.cacheTokens {
		b.mu.Lock()
		creds := b.creds
		b.mu.Unlock()
		if creds.AccessToken != "" && !needsRefresh(&creds, b.now()) {
			return creds.AccessToken, nil
		}
	}
	return b.Refresh(ctx)
}

// AuthHeader returns the Authorization header value Zoho Books expects.
func (b *TokenBroker) AuthHeader(ctx context.Context) (string, error) {
	token, err := b.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	return "Zoho-oauthtoken " + token, nil
}

// Refresh always performs a token exchange (or joins one already in flight)
// and replaces the held access token.
func (b *TokenBroker) Refresh(ctx context.Context) (string, error) {
	ch := b.group.DoChan("refresh", func() (any, error) {
		// Detached so one caller's cancellation does not fail the shared exchange.
		return b.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Snapshot returns a copy of the current credentials.
func (b *TokenBroker) Snapshot() Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creds
}

// needsRefresh checks if the token should be refreshed
func needsRefresh(creds *Credentials, now time.Time) bool {
	if creds.ExpiresAt == 0 {
		return false
	}
	return now.Unix() >= creds.ExpiresAt-tokenRefreshBuffer
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	Error        string `json:"error"`
}

func (b *TokenBroker) refresh(ctx context.Context) (token string, err error) {
	log := observability.Logger().Named("broker")
	ctx, span := observability.Tracer().Start(ctx, "zoho.oauth.refresh")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	b.mu.Lock()
	refreshToken := b.creds.RefreshToken
	b.mu.Unlock()
	if refreshToken == "" {
		return "", &apperrors.AuthError{Message: noRefreshTokenMsg}
	}

	data := url.Values{}
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", b.clientID)
	data.Set("client_secret", b.clientSecret)
	data.Set("grant_type", "refresh_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", apperrors.NewAuthError(err.Error(), errors.Wrap(err, "create refresh request"))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		log.Warn("token exchange failed", zap.Error(err))
		return "", apperrors.NewAuthError(err.Error(), err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewAuthError(err.Error(), errors.Wrap(err, "read token response"))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		log.Warn("token response is not JSON", zap.Int("status", resp.StatusCode))
		return "", apperrors.NewAuthError("", errors.Wrap(err, "decode token response"))
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		log.Warn("token exchange rejected", zap.Int("status", resp.StatusCode), zap.String("error", tr.Error))
		return "", apperrors.NewAuthError(tr.Error, nil)
	}

	expiresIn := tr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}

	b.mu.Lock()
	b.creds.AccessToken = tr.AccessToken
	b.creds.ExpiresAt = b.now().Unix() + expiresIn
	rotated := tr.RefreshToken != "" && tr.RefreshToken != b.creds.RefreshToken
	if tr.RefreshToken != "" {
		b.creds.RefreshToken = tr.RefreshToken
	}
	b.mu.Unlock()

	span.SetAttributes(attribute.Bool("oauth.refresh_token_rotated", rotated))
	log.Debug("token refreshed", zap.Int64("expires_in", expiresIn), zap.Bool("rotated", rotated))
	return tr.AccessToken, nil
}
