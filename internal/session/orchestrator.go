package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"genesis-login/internal/credential"
	"genesis-login/internal/models"
	"genesis-login/internal/store"
	"genesis-login/internal/tenant"

	"go.uber.org/zap"
)

// Directory is the slice of the directory client the orchestrator needs.
type Directory interface {
	GetTenantInfo(ctx context.Context, tenantRef string) (*models.TenantInfo, error)
}

// Options configures an orchestrator.
type Options struct {
	BaseURL       string
	APIPrefix     string
	ClientID      string
	ClientSecret  string
	StoragePrefix string
	Timeout       time.Duration
}

// Snapshot is the orchestrator's view of the session for display purposes.
type Snapshot struct {
	TenantID       string
	TenantName     string
	Tokens         models.AuthTokens
	Profile        *models.UserProfile
	ProfileLoading bool
}

// Orchestrator binds the token store to a tenant once the identity-provider
// config is known, reacts to token changes by resolving the user profile, and
// wipes credentials when the session turns out to be invalid.
type Orchestrator struct {
	opts      Options
	directory Directory
	kv        store.KV
	logger    *zap.Logger

	mu             sync.Mutex
	generation     uint64
	tenantID       string
	tenantName     string
	tokenStore     *store.TokenStore
	client         credential.AuthClient
	unsubscribe    func()
	tokens         models.AuthTokens
	profile        *models.UserProfile
	profileLoading bool
}

// NewOrchestrator creates an unbound orchestrator. Nothing happens until
// Bind is called with a resolved identity-provider config.
func NewOrchestrator(opts Options, dir Directory, kv store.KV, logger *zap.Logger) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	return &Orchestrator{
		opts:      opts,
		directory: dir,
		kv:        kv,
		logger:    logger,
		client:    credential.Disabled{},
	}
}

// Bind points the orchestrator at an identity-provider config. Any previous
// binding is superseded: its client is stopped, its subscription dropped, and
// results of its still-pending lookups are discarded on arrival. A config
// whose iam_client does not resolve to a tenant leaves the orchestrator with
// a disabled client that fails every grant without reaching the network.
func (o *Orchestrator) Bind(ctx context.Context, idpConfig *models.IdentityProviderConfig) {
	o.mu.Lock()
	o.generation++
	gen := o.generation

	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	o.client.Stop()

	o.tokens = models.AuthTokens{}
	o.profile = nil
	o.profileLoading = false

	tenantID := ""
	if idpConfig != nil {
		tenantID, _ = tenant.Resolve(idpConfig.IAMClient)
	}
	o.tenantID = tenantID
	o.tenantName = tenantID

	if tenantID == "" {
		o.tokenStore = nil
		o.client = credential.Disabled{}
		o.mu.Unlock()
		return
	}

	tokenStore := store.New(tenantID, o.opts.StoragePrefix, o.kv, o.logger)
	client, err := credential.NewClient(credential.Options{
		TenantID:     tenantID,
		BaseURL:      o.opts.BaseURL,
		APIPrefix:    o.opts.APIPrefix,
		ClientID:     o.opts.ClientID,
		ClientSecret: o.opts.ClientSecret,
		Timeout:      o.opts.Timeout,
	}, tokenStore, o.logger)
	if err != nil {
		o.logger.Error("Failed to construct credential client", zap.String("tenant_id", tenantID), zap.Error(err))
		o.tokenStore = nil
		o.client = credential.Disabled{}
		o.mu.Unlock()
		return
	}

	o.tokenStore = tokenStore
	o.client = client
	o.mu.Unlock()

	// Subscribing delivers the current snapshot immediately; initializing
	// from storage re-notifies with the persisted pair. Both land in
	// onTokens, which re-checks the generation before acting.
	unsubscribe := tokenStore.Subscribe(func(tokens models.AuthTokens) {
		o.onTokens(gen, tokens)
	})

	o.mu.Lock()
	if gen != o.generation {
		// Superseded while subscribing.
		o.mu.Unlock()
		unsubscribe()
		client.Stop()
		return
	}
	o.unsubscribe = unsubscribe
	o.mu.Unlock()

	tokenStore.InitializeFromStorage(ctx)

	go o.resolveTenantName(gen, idpConfig.IAMClient, tenantID)
}

// resolveTenantName fetches the tenant's display name, best-effort. The raw
// tenant id stays in place as the fallback.
func (o *Orchestrator) resolveTenantName(gen uint64, tenantRef, tenantID string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	defer cancel()

	name := tenantID
	info, err := o.directory.GetTenantInfo(ctx, tenantRef)
	if err != nil {
		o.logger.Error("Failed to load IAM client information", zap.String("tenant_id", tenantID), zap.Error(err))
	} else if trimmed := strings.TrimSpace(info.Name); trimmed != "" {
		name = trimmed
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return
	}
	o.tenantName = name
}

// onTokens is the store listener: every token change either drops the
// profile (signed out) or triggers a fresh profile resolution.
func (o *Orchestrator) onTokens(gen uint64, tokens models.AuthTokens) {
	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}

	o.tokens = tokens

	if !tokens.HasAny() {
		o.profile = nil
		o.profileLoading = false
		o.mu.Unlock()
		return
	}

	o.profileLoading = true
	client := o.client
	o.mu.Unlock()

	go o.resolveProfile(gen, client)
}

// resolveProfile fetches the current user's profile. A nil result while a
// token is present means the session is invalid (backend and cache disagree):
// all credentials are cleared and the flow falls back to the login form.
func (o *Orchestrator) resolveProfile(gen uint64, client credential.AuthClient) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.Timeout)
	defer cancel()

	profile := client.FetchCurrentUserProfile(ctx)

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return
	}

	if profile == nil {
		tokenStore := o.tokenStore
		o.profile = nil
		o.profileLoading = false
		o.mu.Unlock()

		o.logger.Error("Failed to resolve current user profile, clearing tokens",
			zap.String("tenant_id", tokenStore.TenantID()))
		tokenStore.ClearAll(ctx)
		return
	}

	o.profile = profile
	o.profileLoading = false
	o.mu.Unlock()
}

// Login performs a password grant through the bound credential client.
func (o *Orchestrator) Login(ctx context.Context, params credential.PasswordLogin) (*models.LoginResult, error) {
	return o.currentClient().LoginWithPassword(ctx, params)
}

// Refresh renews the access token through the bound credential client.
func (o *Orchestrator) Refresh(ctx context.Context, opts credential.RefreshOptions) (*models.LoginResult, error) {
	return o.currentClient().RefreshAccessToken(ctx, opts)
}

// SignOut stops the refresh timer and wipes all credentials for the bound
// tenant. Safe to call when nothing is bound.
func (o *Orchestrator) SignOut(ctx context.Context) {
	o.mu.Lock()
	client := o.client
	tokenStore := o.tokenStore
	o.profile = nil
	o.profileLoading = false
	o.mu.Unlock()

	client.Stop()
	if tokenStore != nil {
		tokenStore.ClearAll(ctx)
	}
}

// Close releases the current binding.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	client := o.client
	o.mu.Unlock()

	client.Stop()
}

// AccessToken returns the current access token, empty when signed out.
func (o *Orchestrator) AccessToken() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tokens.Token
}

// RememberedUser returns the stored username used to pre-fill the login
// form, empty when none is remembered or nothing is bound.
func (o *Orchestrator) RememberedUser(ctx context.Context) string {
	o.mu.Lock()
	tokenStore := o.tokenStore
	o.mu.Unlock()

	if tokenStore == nil {
		return ""
	}
	return tokenStore.CurrentUser(ctx)
}

// Snapshot returns the current session view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		TenantID:       o.tenantID,
		TenantName:     o.tenantName,
		Tokens:         o.tokens,
		Profile:        o.profile,
		ProfileLoading: o.profileLoading,
	}
}

func (o *Orchestrator) currentClient() credential.AuthClient {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.client
}
