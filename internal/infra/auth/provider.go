package auth

import (
	"context"
	"log/slog"

	"streakbuddy/config"
	"streakbuddy/internal/domain/constants"
	"streakbuddy/internal/domain/service"
	"streakbuddy/internal/infra/auth/google"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// IdentityParams defines the dependencies of the identity provider.
type IdentityParams struct {
	fx.In

	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
	Tokens service.TokenService `optional:"true"`
}

// NewIdentityProvider returns the verifier selected by identity.provider.
func NewIdentityProvider(params IdentityParams) (service.IdentityProvider, error) {
	switch params.Config.Identity.Provider {
	case constants.IdentityProviderFirebase:
		if params.Config.Firebase == nil {
			return nil, errors.New("firebase config is required for the firebase identity provider")
		}

		return NewFirebaseIdentityProvider(params.Ctx, params.Config.Firebase)
	case constants.IdentityProviderGoogle:
		return google.NewAuthService(params.Config, params.Logger) //nolint:wrapcheck // descriptive configuration error
	case constants.IdentityProviderJWT, "":
		if params.Tokens == nil {
			return nil, errors.New("jwt identity provider needs identity.secret")
		}

		return NewTokenIdentityProvider(params.Tokens), nil
	default:
		return nil, errors.Errorf("unknown identity provider %q", params.Config.Identity.Provider)
	}
}

// NewOptionalJWTService provides a TokenService only when a signing secret is configured.
func NewOptionalJWTService(cfg *config.Config) (service.TokenService, error) {
	if cfg.Identity.Secret == "" {
		return nil, nil
	}

	return NewJWTService(cfg)
}
