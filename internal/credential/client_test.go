package credential_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"genesis-login/internal/credential"
	"genesis-login/internal/models"
	"genesis-login/internal/store"
	"genesis-login/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T, handler http.Handler) (*credential.Client, *store.TokenStore, *store.MemoryKV, func()) {
	t.Helper()

	server := httptest.NewServer(handler)
	kv := store.NewMemoryKV()
	tokenStore := store.New("tenant-1", "genesis_oidc_ui", kv, zap.NewNop())

	client, err := credential.NewClient(credential.Options{
		TenantID:     "tenant-1",
		BaseURL:      server.URL,
		APIPrefix:    "/genesis/v1",
		ClientID:     "portal-client",
		ClientSecret: "portal-secret",
		Timeout:      5 * time.Second,
	}, tokenStore, zap.NewNop())
	require.NoError(t, err)

	cleanup := func() {
		client.Stop()
		server.Close()
	}
	return client, tokenStore, kv, cleanup
}

func TestNewClientRequiresTenant(t *testing.T) {
	_, err := credential.NewClient(credential.Options{TenantID: "  "}, nil, zap.NewNop())
	assert.ErrorIs(t, err, errors.ErrTenantNotConfigured)
}

func TestLoginWithPassword(t *testing.T) {
	client, tokenStore, kv, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/genesis/v1/iam/clients/tenant-1/actions/get_token/invoke", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Equal(t, "portal-client", r.Header.Get("X-Client-Id"))
		assert.Equal(t, "portal-secret", r.Header.Get("X-Client-Secret"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "alice", r.PostForm.Get("username"))
		assert.Equal(t, "secret", r.PostForm.Get("password"))
		assert.Equal(t, "openid", r.PostForm.Get("scope"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "access-1",
			"refresh_token": "refresh-1",
			"token_type": "Bearer",
			"expires_in": 300,
			"scope": "openid"
		}`))
	}))
	defer cleanup()

	result, err := client.LoginWithPassword(context.Background(), credential.PasswordLogin{
		Username:   "alice",
		Password:   "secret",
		RememberMe: true,
		Scope:      "openid",
	})
	require.NoError(t, err)

	assert.Equal(t, models.AuthTokens{Token: "access-1", RefreshToken: "refresh-1"}, result.Tokens)
	assert.Equal(t, "Bearer", result.Meta.TokenType)
	assert.Equal(t, int64(300), result.Meta.ExpiresIn)
	require.NotNil(t, result.Raw)
	assert.Equal(t, "access-1", result.Raw.AccessToken)

	// RememberMe persists the pair and the username.
	_, found, err := kv.Get(context.Background(), "genesis_oidc_ui.tenant-1.authTokens")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "alice", tokenStore.CurrentUser(context.Background()))
}

func TestLoginWithoutRememberMePurgesPersisted(t *testing.T) {
	client, tokenStore, kv, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "access-2"}`))
	}))
	defer cleanup()

	// A previous remembered session left a persisted pair behind.
	require.NoError(t, kv.Set(context.Background(), "genesis_oidc_ui.tenant-1.authTokens", `{"token":"stale"}`))

	_, err := client.LoginWithPassword(context.Background(), credential.PasswordLogin{
		Username: "alice",
		Password: "secret",
	})
	require.NoError(t, err)

	assert.Equal(t, "access-2", tokenStore.Tokens().Token)

	_, found, err := kv.Get(context.Background(), "genesis_oidc_ui.tenant-1.authTokens")
	require.NoError(t, err)
	assert.False(t, found, "in-memory mode must purge the previously persisted pair")
}

func TestLoginNonSuccessStatus(t *testing.T) {
	client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer cleanup()

	_, err := client.LoginWithPassword(context.Background(), credential.PasswordLogin{Username: "alice", Password: "wrong"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)

	var svcErr *errors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Details, "401")
	assert.Contains(t, svcErr.Details, "invalid_grant")

	assert.Equal(t, models.AuthTokens{}, tokenStore.Tokens(), "failed login stores nothing")
}

func TestLoginMissingAccessToken(t *testing.T) {
	client, _, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer cleanup()

	_, err := client.LoginWithPassword(context.Background(), credential.PasswordLogin{Username: "alice", Password: "secret"})
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestRefreshWithoutRefreshToken(t *testing.T) {
	var calls int32
	client, _, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer cleanup()

	_, err := client.RefreshAccessToken(context.Background(), credential.RefreshOptions{})
	assert.ErrorIs(t, err, errors.ErrNoRefreshToken)
	assert.Zero(t, atomic.LoadInt32(&calls), "no network call without a refresh token")
}

func TestRefreshFailureClearsTokens(t *testing.T) {
	client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer cleanup()

	tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("stale-access"), RefreshToken: strPtr("stale-refresh")})

	_, err := client.RefreshAccessToken(context.Background(), credential.RefreshOptions{})
	require.Error(t, err)

	assert.Equal(t, models.AuthTokens{}, tokenStore.Tokens(), "a failed refresh never leaves stale tokens behind")
}

func TestRefreshRotatesTokens(t *testing.T) {
	client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "refresh-old", r.PostForm.Get("refresh_token"))

		w.Write([]byte(`{"access_token": "access-new", "refresh_token": "refresh-new"}`))
	}))
	defer cleanup()

	tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("access-old"), RefreshToken: strPtr("refresh-old")})

	result, err := client.RefreshAccessToken(context.Background(), credential.RefreshOptions{})
	require.NoError(t, err)
	assert.Equal(t, models.AuthTokens{Token: "access-new", RefreshToken: "refresh-new"}, result.Tokens)
}

func TestRefreshKeepsRefreshTokenWhenResponseOmitsIt(t *testing.T) {
	client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "access-new"}`))
	}))
	defer cleanup()

	tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("access-old"), RefreshToken: strPtr("refresh-keep")})

	result, err := client.RefreshAccessToken(context.Background(), credential.RefreshOptions{})
	require.NoError(t, err)
	assert.Equal(t, "refresh-keep", result.Tokens.RefreshToken)
}

func TestFetchCurrentUserProfile(t *testing.T) {
	client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/genesis/v1/iam/clients/tenant-1/actions/me", r.URL.Path)
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		w.Write([]byte(`{"user": {"uuid": "user-1", "first_name": "Alice", "username": "alice"}}`))
	}))
	defer cleanup()

	tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("access-1")})

	profile := client.FetchCurrentUserProfile(context.Background())
	require.NotNil(t, profile)
	assert.Equal(t, "user-1", profile.UUID)
	assert.Equal(t, "Alice", profile.FirstName)
}

func TestFetchCurrentUserProfileSoftFailures(t *testing.T) {
	t.Run("no access token", func(t *testing.T) {
		var calls int32
		client, _, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer cleanup()

		assert.Nil(t, client.FetchCurrentUserProfile(context.Background()))
		assert.Zero(t, atomic.LoadInt32(&calls))
	})

	t.Run("non-success status", func(t *testing.T) {
		client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer cleanup()

		tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("expired")})
		assert.Nil(t, client.FetchCurrentUserProfile(context.Background()))
	})

	t.Run("unparsable body", func(t *testing.T) {
		client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{broken`))
		}))
		defer cleanup()

		tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("access-1")})
		assert.Nil(t, client.FetchCurrentUserProfile(context.Background()))
	})

	t.Run("missing user object", func(t *testing.T) {
		client, tokenStore, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		}))
		defer cleanup()

		tokenStore.SetTokens(models.TokenUpdate{Token: strPtr("access-1")})
		assert.Nil(t, client.FetchCurrentUserProfile(context.Background()))
	})
}

func TestStopIsIdempotent(t *testing.T) {
	client, _, _, cleanup := newFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "a", "expires_in": 300}`))
	}))
	defer cleanup()

	_, err := client.LoginWithPassword(context.Background(), credential.PasswordLogin{Username: "a", Password: "b"})
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		client.Stop()
		client.Stop()
	})
}

func TestDisabledClient(t *testing.T) {
	var d credential.AuthClient = credential.Disabled{}

	_, err := d.LoginWithPassword(context.Background(), credential.PasswordLogin{Username: "a", Password: "b"})
	assert.ErrorIs(t, err, errors.ErrTenantNotConfigured)

	_, err = d.RefreshAccessToken(context.Background(), credential.RefreshOptions{})
	assert.ErrorIs(t, err, errors.ErrTenantNotConfigured)

	assert.Nil(t, d.FetchCurrentUserProfile(context.Background()))
	assert.NotPanics(t, d.Stop)
}
