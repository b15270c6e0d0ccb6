package credential

import (
	"context"

	"genesis-login/internal/models"
	"genesis-login/pkg/errors"
)

// Disabled is the stand-in used when the identity-provider config does not
// resolve to a tenant. Every grant fails immediately without touching the
// network; profile resolution yields nothing; Stop is a no-op.
type Disabled struct{}

func (Disabled) LoginWithPassword(context.Context, PasswordLogin) (*models.LoginResult, error) {
	return nil, errors.ErrTenantNotConfigured
}

func (Disabled) RefreshAccessToken(context.Context, RefreshOptions) (*models.LoginResult, error) {
	return nil, errors.ErrTenantNotConfigured
}

func (Disabled) FetchCurrentUserProfile(context.Context) *models.UserProfile {
	return nil
}

func (Disabled) Stop() {}
