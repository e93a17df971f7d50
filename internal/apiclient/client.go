// Package apiclient talks to the remote booking API on behalf of the console.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/pod-console/internal/config"
	"github.com/spec-kit/pod-console/internal/domain"
	apperrors "github.com/spec-kit/pod-console/pkg/util"
)

const errorBodyMaxLength = 4096

// Client issues JSON requests against the booking API.
type Client struct {
	baseURL   string
	loginPath string
	http      *http.Client
	logger    *zap.Logger
}

// NewClient builds a client whose transport is the authenticator wrapped in
// otelhttp instrumentation.
func NewClient(cfg config.APIConfig, transport http.RoundTripper, logger *zap.Logger) *Client {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		loginPath: cfg.LoginPath,
		http: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   cfg.Timeout(),
		},
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

// Login exchanges credentials for a session token. Failed logins never
// trigger the forced logout path.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.LoginResult, error) {
	if strings.TrimSpace(creds.Email) == "" || creds.Password == "" {
		return domain.LoginResult{}, apperrors.NewValidationError("email and password required", nil)
	}
	var resp loginResponse
	if err := c.Post(Anonymous(ctx), c.loginPath, loginRequest{Email: creds.Email, Password: creds.Password}, &resp); err != nil {
		return domain.LoginResult{}, err
	}
	if resp.Token == "" {
		return domain.LoginResult{}, apperrors.NewUpstreamError(http.StatusBadGateway, "login response has no token", nil)
	}
	email := resp.Email
	if email == "" {
		email = creds.Email
	}
	return domain.LoginResult{Token: resp.Token, Role: domain.ParseRole(resp.Role), Email: email}, nil
}

// Get decodes GET path into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post sends body as JSON and decodes the reply into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON and decodes the reply into out.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api unreachable", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.NewUnavailable("booking api unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstreamError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return apperrors.NewUpstreamError(http.StatusBadGateway, "invalid api response", map[string]any{"cause": err.Error()})
	}
	return nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// upstreamError keeps the API's status and, when present, its message.
func upstreamError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxLength))
	var envelope struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	message := ""
	if json.Unmarshal(raw, &envelope) == nil {
		switch e := envelope.Error.(type) {
		case string:
			message = e
		case map[string]any:
			if m, ok := e["message"].(string); ok {
				message = m
			}
		}
		if message == "" {
			message = envelope.Message
		}
	}
	return apperrors.NewUpstreamError(resp.StatusCode, message, nil)
}
