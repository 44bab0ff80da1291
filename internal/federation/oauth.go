package federation

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/elskow/users-api/internal/config"
)

var ErrMissingIDToken = errors.New("token response carries no id_token")

// GoogleOAuth drives the authorization-code flow. The state parameter
// carries the requested role through the consent round trip.
type GoogleOAuth struct {
	oauth    *oauth2.Config
	verifier Verifier
}

func NewGoogleOAuth(cfg *config.GoogleConfig, verifier Verifier) *GoogleOAuth {
	return &GoogleOAuth{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier: verifier,
	}
}

func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state)
}

// Exchange redeems code and verifies the returned ID token.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: exchange: %v", ErrInvalidToken, err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok || raw == "" {
		return nil, ErrMissingIDToken
	}
	return g.verifier.Verify(ctx, raw)
}
