package credential

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

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	// refreshSkew renews the access token this long before it expires.
	refreshSkew = 60 * time.Second
	// minRefreshDelay floors the timer so clock skew or very short-lived
	// tokens cannot cause a refresh storm.
	minRefreshDelay = 5 * time.Second
)

// TokenStore is the slice of the token store the credential client needs.
type TokenStore interface {
	Tokens() models.AuthTokens
	SetTokens(models.TokenUpdate) models.AuthTokens
	SetPersistentTokens(context.Context, models.TokenUpdate) models.AuthTokens
	PurgePersisted(context.Context)
	ClearAll(context.Context)
	SetCurrentUser(context.Context, string)
}

// AuthClient issues and renews credentials for one tenant.
type AuthClient interface {
	LoginWithPassword(ctx context.Context, params PasswordLogin) (*models.LoginResult, error)
	RefreshAccessToken(ctx context.Context, opts RefreshOptions) (*models.LoginResult, error)
	FetchCurrentUserProfile(ctx context.Context) *models.UserProfile
	Stop()
}

// PasswordLogin are the parameters of a password grant.
type PasswordLogin struct {
	Username   string
	Password   string
	RememberMe bool
	Scope      string
}

// RefreshOptions are the parameters of a refresh grant.
type RefreshOptions struct {
	RememberMe bool
}

// Options configures a credential client.
type Options struct {
	TenantID     string
	BaseURL      string
	APIPrefix    string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is the token-issuing and refreshing client for one tenant. It
// persists results through its token store and keeps at most one auto-refresh
// timer armed at a time.
type Client struct {
	tenantID     string
	tokenURL     string
	meURL        string
	clientID     string
	clientSecret string
	store        TokenStore
	httpClient   *http.Client
	logger       *zap.Logger
	now          func() time.Time

	// Overridable in tests, like now.
	skew       time.Duration
	floorDelay time.Duration

	mu           sync.Mutex
	refreshTimer *time.Timer
	stopped      bool
}

// NewClient creates a credential client bound to one tenant id and one token
// store. The tenant id must be non-blank; callers with no resolved tenant use
// Disabled instead.
func NewClient(opts Options, store TokenStore, logger *zap.Logger) (*Client, error) {
	tenantID := strings.TrimSpace(opts.TenantID)
	if tenantID == "" {
		return nil, errors.ErrTenantNotConfigured
	}

	base := strings.TrimSuffix(opts.BaseURL, "/") + opts.APIPrefix
	escaped := url.PathEscape(tenantID)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		tenantID:     tenantID,
		tokenURL:     fmt.Sprintf("%s/iam/clients/%s/actions/get_token/invoke", base, escaped),
		meURL:        fmt.Sprintf("%s/iam/clients/%s/actions/me", base, escaped),
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		store:        store,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
		now:          time.Now,
		skew:         refreshSkew,
		floorDelay:   minRefreshDelay,
	}, nil
}

// LoginWithPassword submits a password grant, stores the resulting tokens
// (persistently when RememberMe is set) and arms the auto-refresh timer.
func (c *Client) LoginWithPassword(ctx context.Context, params PasswordLogin) (*models.LoginResult, error) {
	c.revive()

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", params.Username)
	form.Set("password", params.Password)
	form.Set("scope", params.Scope)

	result, err := c.requestTokens(ctx, form, params.RememberMe)
	if err != nil {
		return nil, err
	}

	if params.RememberMe {
		c.store.SetCurrentUser(ctx, params.Username)
	}

	c.scheduleAutoRefresh(result.Meta, result.Tokens.Token, params.RememberMe)
	return result, nil
}

// RefreshAccessToken submits a refresh grant using the stored refresh token.
// Any endpoint failure clears all stored tokens for this tenant before the
// error is returned: a failed refresh must never leave stale credentials
// behind.
func (c *Client) RefreshAccessToken(ctx context.Context, opts RefreshOptions) (*models.LoginResult, error) {
	c.revive()
	return c.refresh(ctx, opts)
}

// refresh is the grant path shared by RefreshAccessToken and the timer
// callback; unlike the public method it never revives a stopped client.
func (c *Client) refresh(ctx context.Context, opts RefreshOptions) (*models.LoginResult, error) {
	refreshToken := c.store.Tokens().RefreshToken
	if refreshToken == "" {
		return nil, errors.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	result, err := c.requestTokens(ctx, form, opts.RememberMe)
	if err != nil {
		c.store.ClearAll(ctx)
		return nil, err
	}

	c.scheduleAutoRefresh(result.Meta, result.Tokens.Token, opts.RememberMe)
	return result, nil
}

// FetchCurrentUserProfile resolves the authenticated user with the stored
// access token. A missing token, a non-success response or an unparsable body
// all yield nil without an error: profile failure is a soft signal the caller
// reacts to, never an exception to propagate.
func (c *Client) FetchCurrentUserProfile(ctx context.Context) *models.UserProfile {
	token := c.store.Tokens().Token
	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.meURL, nil)
	if err != nil {
		c.logger.Error("Failed to build profile request", zap.Error(err))
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch current user profile", zap.String("tenant_id", c.tenantID), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("Profile endpoint returned non-success status",
			zap.String("tenant_id", c.tenantID),
			zap.Int("status", resp.StatusCode))
		return nil
	}

	var me models.MeResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		c.logger.Error("Failed to parse current user profile response", zap.Error(err))
		return nil
	}
	if me.User == nil {
		return nil
	}
	return me.User
}

// Stop disarms any pending auto-refresh timer and keeps an in-flight timer
// callback from re-arming a new one. Safe to call repeatedly and after the
// client is otherwise disposed. A subsequent explicit grant re-enables
// scheduling.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.clearRefreshTimerLocked()
}

// revive lifts a previous Stop so the next grant can arm its timer again.
func (c *Client) revive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = false
}

func (c *Client) requestTokens(ctx context.Context, form url.Values, rememberMe bool) (*models.LoginResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrAuthenticationFailed)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.clientID != "" {
		req.Header.Set("X-Client-Id", c.clientID)
		req.Header.Set("X-Client-Secret", c.clientSecret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Token request failed", zap.String("tenant_id", c.tenantID), zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrAuthenticationFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body := readBodyBestEffort(resp.Body)
		if body == "" {
			body = "no body"
		}
		c.logger.Error("Token endpoint returned non-success status",
			zap.String("tenant_id", c.tenantID),
			zap.Int("status", resp.StatusCode))
		return nil, errors.WithDetails(errors.ErrAuthenticationFailed,
			fmt.Sprintf("token endpoint responded with %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), body))
	}

	var data models.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// An unparsable success body is handled the same as a missing token.
		c.logger.Error("Failed to parse token response", zap.Error(err))
		data = models.TokenResponse{}
	}

	if data.AccessToken == "" {
		return nil, errors.WithDetails(errors.ErrAuthenticationFailed, "token endpoint did not return access_token")
	}

	update := models.TokenUpdate{Token: &data.AccessToken}
	if data.RefreshToken != "" {
		update.RefreshToken = &data.RefreshToken
	}

	var snapshot models.AuthTokens
	if rememberMe {
		snapshot = c.store.SetPersistentTokens(ctx, update)
	} else {
		// In-memory mode first purges any previously persisted pair so a
		// stale copy cannot resurrect the session after a restart.
		c.store.PurgePersisted(ctx)
		snapshot = c.store.SetTokens(update)
	}

	meta := models.TokenMeta{
		TokenType:        data.TokenType,
		ExpiresAt:        data.ExpiresAt,
		ExpiresIn:        data.ExpiresIn,
		RefreshExpiresIn: data.RefreshExpiresIn,
		IDToken:          data.IDToken,
		Scope:            data.Scope,
	}

	return &models.LoginResult{Tokens: snapshot, Raw: &data, Meta: meta}, nil
}

// computeRefreshDelay derives the time until the next refresh. An absolute
// expires_at wins over a relative expires_in; with neither present the
// access token's exp claim is consulted (unverified, scheduling only). No
// expiry information at all means no timer: the caller refreshes reactively.
func (c *Client) computeRefreshDelay(meta models.TokenMeta, accessToken string) (time.Duration, bool) {
	now := c.now().Unix()

	expiresAt := meta.ExpiresAt
	if expiresAt == 0 && meta.ExpiresIn > 0 {
		expiresAt = now + meta.ExpiresIn
	}
	if expiresAt == 0 {
		expiresAt = expiryFromClaims(accessToken)
	}
	if expiresAt == 0 {
		return 0, false
	}

	delay := time.Duration(expiresAt-now)*time.Second - c.skew
	if delay < c.floorDelay {
		delay = c.floorDelay
	}
	return delay, true
}

// expiryFromClaims peeks at the exp claim of a JWT access token without
// verifying the signature. Returns 0 when the token is not a JWT or carries
// no expiry.
func expiryFromClaims(accessToken string) int64 {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return 0
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	return exp.Unix()
}

func (c *Client) scheduleAutoRefresh(meta models.TokenMeta, accessToken string, rememberMe bool) {
	delay, ok := c.computeRefreshDelay(meta, accessToken)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// A callback that outlived Stop must not leave a live timer behind.
	if c.stopped {
		return
	}

	// Arming always disarms first: at most one outstanding timer per client.
	c.clearRefreshTimerLocked()
	c.refreshTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.httpClient.Timeout)
		defer cancel()

		if _, err := c.refresh(ctx, RefreshOptions{RememberMe: rememberMe}); err != nil {
			// Not retried here; the stored state already reflects the
			// failure (cleared) and the caller recovers reactively.
			c.logger.Error("Auto token refresh failed", zap.String("tenant_id", c.tenantID), zap.Error(err))
		}
	})
}

func (c *Client) clearRefreshTimerLocked() {
	if c.refreshTimer != nil {
		c.refreshTimer.Stop()
		c.refreshTimer = nil
	}
}

func readBodyBestEffort(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8192))
	if err != nil {
		return ""
	}
	return string(data)
}
