package authorize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"genesis-login/internal/models"
	"genesis-login/pkg/errors"

	"go.uber.org/zap"
)

// userFacingConfirmError is the short actionable message recorded when a
// confirmation fails; the raw backend response goes into the details block.
const userFacingConfirmError = "Unable to complete authorization request. Please try again later."

// Directory is the slice of the directory client the controller needs.
type Directory interface {
	GetAuthorizationRequest(ctx context.Context, authID string) (*models.AuthorizationRequestInfo, error)
}

// Controller drives one pending authorization request: loading its requested
// scopes (best-effort) and confirming it against the backend to obtain a
// redirect URL. A controller is bound to one request id for its lifetime.
type Controller struct {
	authID     string
	directory  Directory
	confirmURL string
	httpClient *http.Client
	logger     *zap.Logger

	mu          sync.Mutex
	loaded      bool
	scopes      []string
	confirming  bool
	confirmed   bool
	redirectURL string
	errMessage  string
	errDetails  string
}

// NewController creates a controller for one authorization request id.
func NewController(authID string, dir Directory, baseURL, apiPrefix string, timeout time.Duration, logger *zap.Logger) *Controller {
	base := strings.TrimSuffix(baseURL, "/") + apiPrefix
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Controller{
		authID:    authID,
		directory: dir,
		confirmURL: fmt.Sprintf("%s/iam/authorization_requests/%s/actions/confirm/invoke",
			base, url.PathEscape(strings.TrimSpace(authID))),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// AuthID returns the request id this controller is bound to.
func (c *Controller) AuthID() string {
	return c.authID
}

// LoadScopes fetches the request and parses its scope string. Scope display
// is best-effort: any lookup failure is logged and surfaces as "no scopes"
// rather than an error.
func (c *Controller) LoadScopes(ctx context.Context) {
	info, err := c.directory.GetAuthorizationRequest(ctx, c.authID)

	var scopes []string
	if err != nil {
		c.logger.Error("Failed to load authorization request scopes",
			zap.String("auth_id", c.authID), zap.Error(err))
	} else {
		scopes = ParseScopes(info.Scope)
	}

	c.mu.Lock()
	c.loaded = true
	c.scopes = scopes
	c.mu.Unlock()
}

// RequestedScopes returns the parsed scope list and whether loading has
// completed. A nil list with loaded=true means the request carries zero
// scopes (or the lookup failed).
func (c *Controller) RequestedScopes() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scopes == nil {
		return nil, c.loaded
	}
	out := make([]string, len(c.scopes))
	copy(out, c.scopes)
	return out, c.loaded
}

// Confirm submits the confirmation with the caller-supplied bearer token and
// returns the redirect URL. Re-entrant calls while a confirmation is already
// in flight are rejected, not queued. A success without a usable redirect URL
// is a failure.
func (c *Controller) Confirm(ctx context.Context, accessToken string) (string, error) {
	c.mu.Lock()
	if c.confirming {
		c.mu.Unlock()
		return "", errors.ErrConfirmationInProgress
	}
	c.confirming = true
	c.errMessage = ""
	c.errDetails = ""
	c.mu.Unlock()

	redirectURL, err := c.doConfirm(ctx, accessToken)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirming = false

	if err != nil {
		c.logger.Error("Failed to confirm authorization request",
			zap.String("auth_id", c.authID), zap.Error(err))
		c.errMessage = userFacingConfirmError
		c.errDetails = err.Error()
		return "", err
	}

	c.confirmed = true
	c.redirectURL = redirectURL
	return redirectURL, nil
}

func (c *Controller) doConfirm(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.confirmURL, nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternalServer)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrConfirmationFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readBodyBestEffort(resp.Body)
		if body == "" {
			body = "no body"
		}
		return "", errors.WithDetails(errors.ErrConfirmationFailed,
			fmt.Sprintf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), body))
	}

	var confirm models.ConfirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&confirm); err != nil {
		return "", errors.Wrap(err, errors.ErrMissingRedirect)
	}
	if strings.TrimSpace(confirm.RedirectURL) == "" {
		return "", errors.ErrMissingRedirect
	}

	return confirm.RedirectURL, nil
}

// IsConfirming reports whether a confirmation is currently in flight.
func (c *Controller) IsConfirming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirming
}

// Confirmed returns the redirect URL of a completed confirmation.
func (c *Controller) Confirmed() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redirectURL, c.confirmed
}

// LastError returns the user-facing message and technical details of the
// most recent failed confirmation.
func (c *Controller) LastError() (message, details string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMessage, c.errDetails
}

// Reset clears the confirmation state so a fresh attempt can be made, e.g.
// after a sign-out.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirming = false
	c.confirmed = false
	c.redirectURL = ""
	c.errMessage = ""
	c.errDetails = ""
}

// ParseScopes splits a space-delimited scope string into an ordered list,
// dropping duplicates after their first occurrence. Empty or all-whitespace
// input yields nil, "no scopes".
func ParseScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(fields))
	scopes := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		scopes = append(scopes, field)
	}
	return scopes
}

func readBodyBestEffort(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil {
		return ""
	}
	return string(data)
}
