package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"streakbuddy/config"
	"streakbuddy/internal/domain/constants"

	"github.com/pkg/errors"
	"google.golang.org/api/idtoken"
)

type tokenValidator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// googleCallerAuth verifies the OIDC token Google attaches to Pub/Sub push and
// Cloud Scheduler requests.
// Reference: https://cloud.google.com/pubsub/docs/push#authenticating_standard_push_requests
type googleCallerAuth struct {
	enabled  bool
	audience string
	validate tokenValidator
}

// newGoogleCallerAuth enables verification for the google provider outside develop.
func newGoogleCallerAuth(cfg *config.Config) *googleCallerAuth {
	auth := &googleCallerAuth{validate: idtoken.Validate}

	if cfg.PubSub != nil {
		auth.enabled = cfg.PubSub.Provider == constants.PubSubProviderGoogle && cfg.Env.Env != constants.EnvDevelop
		auth.audience = cfg.PubSub.PushAudience
	}

	return auth
}

func (a *googleCallerAuth) verify(req *http.Request) error {
	if !a.enabled {
		return nil
	}

	authHeader := req.Header.Get("Authorization")
	if authHeader == "" {
		return errors.New("missing authorization header")
	}

	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return errors.New("invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, bearerPrefix)

	// Without a configured audience, expect the URL of this endpoint
	audience := a.audience
	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := a.validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "failed to validate token")
	}

	if payload.Issuer != "accounts.google.com" && payload.Issuer != "https://accounts.google.com" {
		return errors.Errorf("invalid issuer: %s", payload.Issuer)
	}

	if emailVerified, ok := payload.Claims["email_verified"].(bool); ok && !emailVerified {
		return errors.New("email not verified")
	}

	return nil
}
