package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"genesis-login/internal/models"

	"go.uber.org/zap"
)

// Listener receives a snapshot of the tokens after every change.
type Listener func(models.AuthTokens)

// KV is the durable backend behind a token store. Implementations must be
// safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// TokenStore holds the credential pair for exactly one tenant. The tenant id
// is fixed at construction; switching tenants means constructing a new store,
// never rebinding this one. A nil KV degrades every persistence operation to
// a no-op.
type TokenStore struct {
	tenantID string
	prefix   string
	kv       KV
	logger   *zap.Logger

	mu        sync.Mutex
	tokens    models.AuthTokens
	listeners map[int]Listener
	nextID    int
}

// New creates a token store bound to tenantID. Keys in the durable backend
// are namespaced as <prefix>.<tenantID>.<field>.
func New(tenantID, prefix string, kv KV, logger *zap.Logger) *TokenStore {
	return &TokenStore{
		tenantID:  tenantID,
		prefix:    prefix,
		kv:        kv,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// TenantID returns the tenant this store is permanently bound to.
func (s *TokenStore) TenantID() string {
	return s.tenantID
}

func (s *TokenStore) tokensKey() string {
	return fmt.Sprintf("%s.%s.authTokens", s.prefix, s.tenantID)
}

func (s *TokenStore) userKey() string {
	return fmt.Sprintf("%s.%s.currentUser", s.prefix, s.tenantID)
}

// Tokens returns a snapshot of the current pair.
func (s *TokenStore) Tokens() models.AuthTokens {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// AccessToken returns the current access token, empty if absent.
func (s *TokenStore) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.Token
}

// RefreshToken returns the current refresh token, empty if absent.
func (s *TokenStore) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens.RefreshToken
}

// SetTokens merges the update into the in-memory pair only; nil fields keep
// their stored value. Subscribers are notified with the resulting snapshot.
func (s *TokenStore) SetTokens(update models.TokenUpdate) models.AuthTokens {
	s.mu.Lock()
	if update.Token != nil {
		s.tokens.Token = *update.Token
	}
	if update.RefreshToken != nil {
		s.tokens.RefreshToken = *update.RefreshToken
	}
	snapshot := s.tokens
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.notify(listeners, snapshot)
	return snapshot
}

// SetPersistentTokens merges like SetTokens and then writes the resulting
// snapshot to durable storage so the session survives a restart.
func (s *TokenStore) SetPersistentTokens(ctx context.Context, update models.TokenUpdate) models.AuthTokens {
	snapshot := s.SetTokens(update)

	if s.kv == nil {
		return snapshot
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("Failed to marshal tokens for persistence", zap.String("tenant_id", s.tenantID), zap.Error(err))
		return snapshot
	}
	if err := s.kv.Set(ctx, s.tokensKey(), string(data)); err != nil {
		s.logger.Error("Failed to persist tokens", zap.String("tenant_id", s.tenantID), zap.Error(err))
	}
	return snapshot
}

// PurgePersisted erases the persisted pair without touching the in-memory
// state. Used when a login opts out of "remember me" after a previous login
// opted in.
func (s *TokenStore) PurgePersisted(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Delete(ctx, s.tokensKey()); err != nil {
		s.logger.Error("Failed to purge persisted tokens", zap.String("tenant_id", s.tenantID), zap.Error(err))
	}
}

// ClearAll resets the pair to empty, erases both the token entry and the
// remembered-username entry for this tenant, and notifies subscribers.
func (s *TokenStore) ClearAll(ctx context.Context) {
	s.mu.Lock()
	s.tokens = models.AuthTokens{}
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if s.kv != nil {
		if err := s.kv.Delete(ctx, s.tokensKey(), s.userKey()); err != nil {
			s.logger.Error("Failed to erase persisted tokens", zap.String("tenant_id", s.tenantID), zap.Error(err))
		}
	}

	s.notify(listeners, models.AuthTokens{})
}

// InitializeFromStorage loads the persisted pair into memory and notifies
// subscribers. Must be called exactly once after construction, before relying
// on persisted session continuity. Malformed persisted JSON is deleted and
// treated as no tokens.
func (s *TokenStore) InitializeFromStorage(ctx context.Context) {
	loaded := models.AuthTokens{}

	if s.kv != nil {
		raw, found, err := s.kv.Get(ctx, s.tokensKey())
		switch {
		case err != nil:
			s.logger.Error("Failed to read persisted tokens", zap.String("tenant_id", s.tenantID), zap.Error(err))
		case found:
			if err := json.Unmarshal([]byte(raw), &loaded); err != nil {
				s.logger.Warn("Persisted tokens are corrupt, deleting",
					zap.String("tenant_id", s.tenantID), zap.Error(err))
				loaded = models.AuthTokens{}
				if delErr := s.kv.Delete(ctx, s.tokensKey()); delErr != nil {
					s.logger.Error("Failed to delete corrupt token entry", zap.Error(delErr))
				}
			}
		}
	}

	s.mu.Lock()
	s.tokens = loaded
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	s.notify(listeners, loaded)
}

// Subscribe registers a listener. It is invoked once immediately with the
// current snapshot, then again on every change. The returned function
// deregisters it.
func (s *TokenStore) Subscribe(listener Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	snapshot := s.tokens
	s.mu.Unlock()

	s.invoke(listener, snapshot)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// CurrentUser returns the remembered username for this tenant, empty if none.
func (s *TokenStore) CurrentUser(ctx context.Context) string {
	if s.kv == nil {
		return ""
	}
	value, found, err := s.kv.Get(ctx, s.userKey())
	if err != nil {
		s.logger.Error("Failed to read remembered username", zap.String("tenant_id", s.tenantID), zap.Error(err))
		return ""
	}
	if !found {
		return ""
	}
	return value
}

// SetCurrentUser stores the remembered username; an empty name removes it.
func (s *TokenStore) SetCurrentUser(ctx context.Context, username string) {
	if s.kv == nil {
		return
	}
	var err error
	if username == "" {
		err = s.kv.Delete(ctx, s.userKey())
	} else {
		err = s.kv.Set(ctx, s.userKey(), username)
	}
	if err != nil {
		s.logger.Error("Failed to update remembered username", zap.String("tenant_id", s.tenantID), zap.Error(err))
	}
}

// snapshotListeners must be called with the mutex held. Iterating over a copy
// keeps notification re-entrant-safe: a listener may subscribe, unsubscribe
// or mutate tokens during its own invocation.
func (s *TokenStore) snapshotListeners() []Listener {
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	return listeners
}

func (s *TokenStore) notify(listeners []Listener, snapshot models.AuthTokens) {
	for _, listener := range listeners {
		s.invoke(listener, snapshot)
	}
}

// invoke isolates listener panics so one failing subscriber cannot break the
// notifier or its peers.
func (s *TokenStore) invoke(listener Listener, snapshot models.AuthTokens) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Token listener panicked", zap.String("tenant_id", s.tenantID), zap.Any("panic", r))
		}
	}()
	listener(snapshot)
}
