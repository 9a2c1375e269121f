// Package zohobooksapi is a hand-written client for the Zoho Books v3 REST API.
//
// A Session binds the client to one organization and one token source. Every
// endpoint method issues exactly one HTTP request through Session.do, which
// checks the status and the response envelope before returning the raw body.
package zohobooksapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/apperrors"
	"zohobooks-mcp/server/internal/observability"
)

// DefaultBaseURL is the Zoho Books API root for the India data center.
const DefaultBaseURL = "https://www.zohoapis.in/books/v3"

// TokenSource supplies the Authorization header for each request.
type TokenSource interface {
	AuthHeader(ctx context.Context) (string, error)
}

// Client is the HTTP transport shared by sessions. It holds no credentials.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A nil httpClient gets a 30s timeout client.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Session is the per-process context every endpoint call runs in.
type Session struct {
	client         *Client
	tokens         TokenSource
	OrganizationID string
}

// Organization is one entry of GET /organizations.
type Organization struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	IsDefaultOrg   bool   `json:"is_default_org"`
	CurrencyCode   string `json:"currency_code"`
}

// NewSession builds a session for a known organization without any network call.
func NewSession(client *Client, tokens TokenSource, organizationID string) *Session {
	return &Session{client: client, tokens: tokens, OrganizationID: organizationID}
}

// Open builds the session once at startup. When organizationID is empty the
// first organization returned by the API is selected.
func Open(ctx context.Context, client *Client, tokens TokenSource, organizationID string) (*Session, error) {
	s := NewSession(client, tokens, "")
	if organizationID != "" {
		s.OrganizationID = organizationID
		return s, nil
	}

	orgs, err := s.ListOrganizations(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "resolve organization")
	}
	if len(orgs) == 0 {
		return nil, &apperrors.NotFoundError{Message: "No organizations found for this Zoho Books account"}
	}
	s.OrganizationID = orgs[0].OrganizationID
	observability.Logger().Named("zohobooksapi").Info("organization selected",
		zap.String("organization_id", s.OrganizationID),
		zap.String("name", orgs[0].Name),
	)
	return s, nil
}

// ListOrganizations returns the organizations visible to the token.
func (s *Session) ListOrganizations(ctx context.Context) ([]Organization, error) {
	raw, err := s.do(ctx, "ListOrganizations", http.MethodGet, "/organizations", nil, nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Organizations []Organization `json:"organizations"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, &apperrors.UpstreamError{Status: http.StatusOK, Message: "malformed organizations list: " + err.Error()}
	}
	return page.Organizations, nil
}

// do performs one request. organization_id is always set from the session and
// wins over any caller-supplied value.
func (s *Session) do(ctx context.Context, op, method, path string, query url.Values, body any) (raw jx.Raw, err error) {
	ctx, span := observability.Tracer().Start(ctx, "zohobooks."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("zohobooks.organization_id", s.OrganizationID),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if query == nil {
		query = url.Values{}
	}
	if s.OrganizationID != "" {
		query.Set("organization_id", s.OrganizationID)
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(b)
	}

	authHeader, err := s.tokens.AuthHeader(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := s.client.baseURL + path
	if encoded := query.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read response body")
	}
	return checkResponse(resp.StatusCode, data)
}

// checkResponse is the single place upstream status and envelope are verified.
func checkResponse(status int, data []byte) (jx.Raw, error) {
	code, message, ok := parseEnvelope(data)
	if status < 200 || status >= 300 {
		if message == "" {
			message = http.StatusText(status)
		}
		return nil, &apperrors.UpstreamError{Status: status, Code: code, Message: message}
	}
	if !ok {
		return nil, &apperrors.UpstreamError{Status: status, Message: "malformed response body"}
	}
	if code != 0 {
		return nil, &apperrors.UpstreamError{Status: status, Code: code, Message: message}
	}
	return jx.Raw(data), nil
}

// parseEnvelope reads Zoho's top-level code and message. ok is false when the
// body is not valid JSON.
func parseEnvelope(data []byte) (code int, message string, ok bool) {
	if !jx.Valid(data) {
		return 0, "", false
	}
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return 0, "", true
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "code":
			if d.Next() != jx.Number {
				return d.Skip()
			}
			v, err := d.Int()
			code = v
			return err
		case "message":
			if d.Next() != jx.String {
				return d.Skip()
			}
			v, err := d.Str()
			message = v
			return err
		default:
			return d.Skip()
		}
	})
	return code, message, err == nil
}

// queryFromParams converts free-form tool params into query values.
func queryFromParams(params map[string]any) url.Values {
	q := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		q.Set(k, formatParam(v))
	}
	return q
}

func formatParam(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
