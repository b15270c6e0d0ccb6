package models

import "strings"

// AuthTokens is the credential pair held by a token store. An empty string
// means the token is absent; both empty means signed out.
type AuthTokens struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// HasAccessToken reports whether a profile fetch can be authenticated.
func (t AuthTokens) HasAccessToken() bool {
	return t.Token != ""
}

// HasAny reports whether any credential is present. A refresh token without
// an access token still counts as "has credentials" for display purposes.
func (t AuthTokens) HasAny() bool {
	return t.Token != "" || t.RefreshToken != ""
}

// TokenUpdate is a partial update applied to an AuthTokens snapshot.
// A nil field leaves the stored value unchanged.
type TokenUpdate struct {
	Token        *string
	RefreshToken *string
}

// TokenResponse represents the raw body of the get_token action
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresAt        int64  `json:"expires_at,omitempty"`
	ExpiresIn        int64  `json:"expires_in,omitempty"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	IDToken          string `json:"id_token,omitempty"`
	Scope            string `json:"scope,omitempty"`
}

// TokenMeta is the issuance metadata extracted from a token response.
// It is only used to compute the next refresh time; zero values mean the
// field was absent from the response.
type TokenMeta struct {
	TokenType        string
	ExpiresAt        int64
	ExpiresIn        int64
	RefreshExpiresIn int64
	IDToken          string
	Scope            string
}

// LoginResult is returned by a successful grant request.
type LoginResult struct {
	Tokens AuthTokens
	Raw    *TokenResponse
	Meta   TokenMeta
}

// IdentityProviderConfig is a configured login surface, fetched once per
// session and immutable afterwards.
type IdentityProviderConfig struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Status      string `json:"status"`
	ProjectID   string `json:"project_id,omitempty"`
	IAMClient   string `json:"iam_client"`
	ClientID    string `json:"client_id,omitempty"`
	Scope       string `json:"scope,omitempty"`
	CallbackURI string `json:"callback_uri,omitempty"`
}

// TenantInfo is human-readable IAM client metadata, cached for display only.
type TenantInfo struct {
	UUID        string `json:"uuid"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
	Status      string `json:"status,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// AuthorizationRequestInfo is a pending delegated-authorization request.
// Scope is a space-delimited string; empty means no scopes were requested.
type AuthorizationRequestInfo struct {
	UUID             string `json:"uuid"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	Scope            string `json:"scope,omitempty"`
	ExpirationTimeAt string `json:"expiration_time_at,omitempty"`
}

// UserProfile is the authenticated end user as returned by the me action.
type UserProfile struct {
	UUID        string `json:"uuid"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
	Username    string `json:"username,omitempty"`
	Email       string `json:"email,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayName degrades gracefully when the profile carries no usable name.
func (p UserProfile) DisplayName() string {
	if full := strings.TrimSpace(p.FirstName + " " + p.LastName); full != "" {
		return full
	}
	if p.Username != "" {
		return p.Username
	}
	if p.Email != "" {
		return p.Email
	}
	return "User"
}

// MeResponse wraps the profile in the me action's response body.
type MeResponse struct {
	User *UserProfile `json:"user"`
}

// ConfirmResponse is the body of a successful confirm action.
type ConfirmResponse struct {
	RedirectURL string `json:"redirect_url"`
}
