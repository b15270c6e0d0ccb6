package directory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"genesis-login/internal/models"
	"genesis-login/internal/tenant"
	"genesis-login/pkg/errors"

	"go.uber.org/zap"
)

// Client wraps the unauthenticated read endpoints of the Genesis IAM API:
// identity-provider configs, IAM client metadata and authorization requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a directory client. baseURL is the backend root and
// apiPrefix the API mount point (usually /genesis/v1).
func NewClient(baseURL, apiPrefix string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + apiPrefix,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetIdentityProvider fetches the configuration of one login surface.
func (c *Client) GetIdentityProvider(ctx context.Context, idpID string) (*models.IdentityProviderConfig, error) {
	trimmed := strings.TrimSpace(idpID)
	if trimmed == "" {
		return nil, errors.ErrInvalidRequest
	}

	var config models.IdentityProviderConfig
	if err := c.get(ctx, "/iam/idp/"+url.PathEscape(trimmed), &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// GetTenantInfo fetches IAM client metadata. The identifier may be a bare id
// or a resource path; it is normalized before building the lookup URL.
func (c *Client) GetTenantInfo(ctx context.Context, tenantRef string) (*models.TenantInfo, error) {
	id, ok := tenant.Resolve(tenantRef)
	if !ok {
		return nil, errors.ErrTenantNotConfigured
	}

	var info models.TenantInfo
	if err := c.get(ctx, "/iam/clients/"+url.PathEscape(id), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetAuthorizationRequest fetches a pending authorization request.
func (c *Client) GetAuthorizationRequest(ctx context.Context, authID string) (*models.AuthorizationRequestInfo, error) {
	trimmed := strings.TrimSpace(authID)
	if trimmed == "" {
		return nil, errors.ErrInvalidRequest
	}

	var info models.AuthorizationRequestInfo
	if err := c.get(ctx, "/iam/authorization_requests/"+url.PathEscape(trimmed), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	endpoint := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrDirectoryLookup)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Directory request failed", zap.String("url", endpoint), zap.Error(err))
		return errors.Wrap(err, errors.ErrDirectoryLookup)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readBodyBestEffort(resp.Body)
		c.logger.Error("Directory endpoint returned non-success status",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return errors.DirectoryLookup(resp.StatusCode, http.StatusText(resp.StatusCode), body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("Failed to decode directory response", zap.String("url", endpoint), zap.Error(err))
		return errors.Wrap(err, errors.ErrDirectoryLookup)
	}

	return nil
}

// readBodyBestEffort drains an error response for diagnostics; an unreadable
// body becomes an empty string, never a second error.
func readBodyBestEffort(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil {
		return ""
	}
	return string(data)
}
