package auth

import (
	"context"
	"fmt"
	"time"

	"streakbuddy/config"
	"streakbuddy/internal/domain/entity"
	"streakbuddy/internal/domain/service"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// idTokenVerifier is the subset of *auth.Client used here.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

type firebaseIdentityProvider struct {
	client idTokenVerifier
}

// NewFirebaseIdentityProvider verifies Firebase Authentication ID tokens.
func NewFirebaseIdentityProvider(ctx context.Context, cfg *config.FirebaseConfig) (service.IdentityProvider, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	var appCfg *firebase.Config
	if cfg.ProjectID != "" {
		appCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, appCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}

	return &firebaseIdentityProvider{client: client}, nil
}

func (p *firebaseIdentityProvider) VerifyToken(ctx context.Context, token string) (*entity.Identity, error) {
	verified, err := p.client.VerifyIDToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrInvalidCredentials, err)
	}

	identity := &entity.Identity{
		UserID:    verified.UID,
		ExpiresAt: time.Unix(verified.Expires, 0),
	}

	if email, ok := verified.Claims["email"].(string); ok {
		identity.Email = email
	}

	if name, ok := verified.Claims["name"].(string); ok {
		identity.DisplayName = name
	}

	return identity, nil
}
