package client

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

// Gmail and Drive scopes the pipeline needs: read + archive mail, manage the
// files it creates.
var googleScopes = []string{
	"https://www.googleapis.com/auth/gmail.readonly",
	"https://www.googleapis.com/auth/gmail.modify",
	"https://www.googleapis.com/auth/drive.file",
}

// authorizedUserToken mirrors the JSON written by the token generator script
// (google-auth authorized user format).
type authorizedUserToken struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
	TokenURI     string `json:"token_uri"`
}

// GoogleClientOptions builds the shared option set for Gmail and Drive
// services from the GOOGLE_TOKEN payload. The token source refreshes the
// access token transparently, so a long-expired token in the env is fine as
// long as the refresh token is still valid.
func GoogleClientOptions(ctx context.Context, tokenJSON string) ([]option.ClientOption, error) {
	if tokenJSON == "" {
		return nil, fmt.Errorf("google token is empty")
	}

	var tok authorizedUserToken
	if err := json.Unmarshal([]byte(tokenJSON), &tok); err != nil {
		return nil, fmt.Errorf("failed to parse google token: %w", err)
	}
	if tok.RefreshToken == "" {
		return nil, fmt.Errorf("google token has no refresh token")
	}

	endpoint := google.Endpoint
	if tok.TokenURI != "" {
		endpoint.TokenURL = tok.TokenURI
	}

	cfg := &oauth2.Config{
		ClientID:     tok.ClientID,
		ClientSecret: tok.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       googleScopes,
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})

	return []option.ClientOption{option.WithTokenSource(ts)}, nil
}
