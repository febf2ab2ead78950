// Package gateway is the HTTP client for the remote LMS API. Every request
// carries the visitor's bearer token and tenant when they are known.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/noah-isme/nexlearn-dashboard/internal/models"
	"github.com/noah-isme/nexlearn-dashboard/pkg/config"
	"github.com/noah-isme/nexlearn-dashboard/pkg/middleware/requestid"
)

// TenantHeader names the tenant header expected by the remote API.
const TenantHeader = "X-Tenant-ID"

const maxResponseBytes = 1 << 20

// CredentialSource supplies the per-visitor credentials attached to requests.
type CredentialSource interface {
	Token(ctx context.Context) string
	TenantID(ctx context.Context) string
}

type tenantKey struct{}

// WithTenant returns a copy of ctx that sends tenantID on requests made with
// it, ahead of the credential source. An empty tenantID leaves ctx as is.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantFromContext returns the tenant set by WithTenant, or "".
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(tenantKey{}).(string)
	return tenantID
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client holds the connection settings shared by every visitor.
type Client struct {
	baseURL       string
	defaultTenant string
	http          *http.Client
	logger        *zap.Logger
}

// New builds a Client for cfg.
func New(cfg config.APIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:       cfg.BaseURL,
		defaultTenant: cfg.DefaultTenantID,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Auth returns the auth endpoints bound to creds.
func (c *Client) Auth(creds CredentialSource) *AuthClient {
	return &AuthClient{client: c, creds: creds}
}

// Users returns the user management endpoints bound to creds.
func (c *Client) Users(creds CredentialSource) *UsersClient {
	return &UsersClient{client: c, creds: creds}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func jsonRequest(method, path string, payload interface{}) (request, error) {
	req := request{method: method, path: path}
	if payload == nil {
		return req, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req.body = bytes.NewReader(raw)
	req.contentType = "application/json"
	return req, nil
}

// do sends r and decodes the envelope. Non-2xx answers and envelopes with
// success=false become *Error.
func (c *Client) do(ctx context.Context, creds CredentialSource, r request) (*models.APIResponse, error) {
	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, &Error{Message: GenericMessage, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	c.applyCredentials(ctx, req, creds)
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set(requestid.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("remote api unreachable",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, &Error{Message: GenericMessage, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: GenericMessage, Err: err}
	}

	var envelope models.APIResponse
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := &Error{Status: resp.StatusCode, Message: GenericMessage}
		if decodeErr == nil && envelope.Message != "" {
			gwErr.Message = envelope.Message
			gwErr.FromServer = true
		}
		c.logger.Debug("remote api rejected request",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", gwErr.Message),
		)
		return nil, gwErr
	}

	if decodeErr != nil {
		if len(bytes.TrimSpace(raw)) == 0 {
			return &models.APIResponse{Success: true}, nil
		}
		return nil, &Error{Status: resp.StatusCode, Message: GenericMessage, Err: decodeErr}
	}
	if hasSuccessFalse(raw) {
		gwErr := &Error{Status: resp.StatusCode, Message: GenericMessage}
		if envelope.Message != "" {
			gwErr.Message = envelope.Message
			gwErr.FromServer = true
		}
		return nil, gwErr
	}

	return &envelope, nil
}

func (c *Client) applyCredentials(ctx context.Context, req *http.Request, creds CredentialSource) {
	var token string
	tenant := TenantFromContext(ctx)
	if creds != nil {
		token = creds.Token(ctx)
		if tenant == "" {
			tenant = creds.TenantID(ctx)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if tenant == "" {
		tenant = c.defaultTenant
	}
	if tenant != "" {
		req.Header.Set(TenantHeader, tenant)
	}
}

// hasSuccessFalse distinguishes an explicit success=false from an envelope
// that simply omits the field.
func hasSuccessFalse(raw []byte) bool {
	var envelope struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false
	}
	return envelope.Success != nil && !*envelope.Success
}

// decodeUser accepts both {data: User} and {data: {user: User}}.
func decodeUser(resp *models.APIResponse) (*models.User, bool, error) {
	var wrapped models.UserData
	ok, err := resp.Decode(&wrapped)
	if err == nil && ok && wrapped.User != nil {
		return wrapped.User, true, nil
	}

	var user models.User
	ok, err = resp.Decode(&user)
	if err != nil {
		return nil, false, err
	}
	if !ok || (user.ID == "" && user.Email == "") {
		return nil, false, nil
	}
	return &user, true, nil
}
