package directory_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"genesis-login/internal/directory"
	"genesis-login/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, serverURL string) *directory.Client {
	t.Helper()
	return directory.NewClient(serverURL, "/genesis/v1", 5*time.Second, zap.NewNop())
}

func TestGetIdentityProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/genesis/v1/iam/idp/idp-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"uuid": "idp-1",
			"name": "Portal Login",
			"description": "main portal",
			"status": "active",
			"iam_client": "/genesis/v1/iam/clients/client-1",
			"scope": "openid profile",
			"callback_uri": "https://app.example/callback"
		}`))
	}))
	defer server.Close()

	config, err := newClient(t, server.URL).GetIdentityProvider(context.Background(), "idp-1")
	require.NoError(t, err)
	assert.Equal(t, "idp-1", config.UUID)
	assert.Equal(t, "Portal Login", config.Name)
	assert.Equal(t, "/genesis/v1/iam/clients/client-1", config.IAMClient)
	assert.Equal(t, "openid profile", config.Scope)
}

func TestGetIdentityProviderNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	_, err := newClient(t, server.URL).GetIdentityProvider(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDirectoryLookup)

	var svcErr *errors.ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Details, "404")
	assert.Contains(t, svcErr.Details, `{"error":"not found"}`)
}

func TestGetIdentityProviderEmptyID(t *testing.T) {
	_, err := newClient(t, "http://unreachable.invalid").GetIdentityProvider(context.Background(), "   ")
	assert.ErrorIs(t, err, errors.ErrInvalidRequest)
}

func TestGetTenantInfoNormalizesIdentifier(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write([]byte(`{"uuid": "client-1", "name": "Acme", "status": "active"}`))
	}))
	defer server.Close()

	info, err := newClient(t, server.URL).GetTenantInfo(context.Background(), "/genesis/v1/iam/clients/client-1/")
	require.NoError(t, err)
	assert.Equal(t, "/genesis/v1/iam/clients/client-1", requestedPath)
	assert.Equal(t, "Acme", info.Name)
}

func TestGetTenantInfoEmptyIdentifier(t *testing.T) {
	_, err := newClient(t, "http://unreachable.invalid").GetTenantInfo(context.Background(), " / ")
	assert.ErrorIs(t, err, errors.ErrTenantNotConfigured)
}

func TestGetAuthorizationRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/genesis/v1/iam/authorization_requests/auth-1", r.URL.Path)
		w.Write([]byte(`{
			"uuid": "auth-1",
			"created_at": "2025-01-01T00:00:00Z",
			"updated_at": "2025-01-01T00:00:00Z",
			"scope": "read write profile"
		}`))
	}))
	defer server.Close()

	info, err := newClient(t, server.URL).GetAuthorizationRequest(context.Background(), "auth-1")
	require.NoError(t, err)
	assert.Equal(t, "auth-1", info.UUID)
	assert.Equal(t, "read write profile", info.Scope)
}

func TestGetAuthorizationRequestUnknownFieldsIgnored(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"uuid": "auth-1", "created_at": "c", "updated_at": "u", "extra_field": {"nested": true}}`))
	}))
	defer server.Close()

	info, err := newClient(t, server.URL).GetAuthorizationRequest(context.Background(), "auth-1")
	require.NoError(t, err)
	assert.Empty(t, info.Scope, "absent optional fields pass through as absent")
}
