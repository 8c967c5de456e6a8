package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// Identity is the profile a provider vouches for in exchange for a valid
// access token.
type Identity struct {
	Email       string
	DisplayName string
}

// Verifier exchanges a provider access token for the identity it belongs
// to. Implementations must reject tokens they cannot positively verify.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (Identity, error)
}

// GoogleVerifier resolves a Google OAuth access token through the
// userinfo endpoint.
type GoogleVerifier struct{}

func (GoogleVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := goauth2.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return Identity{}, fmt.Errorf("create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("verify google token: %w", err)
	}
	if info.Email == "" {
		return Identity{}, fmt.Errorf("google token carries no email")
	}
	return Identity{Email: info.Email, DisplayName: info.Name}, nil
}

// GitHubVerifier resolves a GitHub OAuth access token through the user
// endpoint. The token must have been granted the user:email scope, or
// the account must expose a public email.
type GitHubVerifier struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewGitHubVerifier() *GitHubVerifier {
	return &GitHubVerifier{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		BaseURL:    "https://api.github.com",
	}
}

func (v *GitHubVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.BaseURL+"/user", nil)
	if err != nil {
		return Identity{}, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := v.HTTPClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify github token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("verify github token: status %d", resp.StatusCode)
	}

	var user struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Login string `json:"login"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return Identity{}, fmt.Errorf("decode github user: %w", err)
	}
	if user.Email == "" {
		return Identity{}, fmt.Errorf("github account exposes no email")
	}

	name := user.Name
	if name == "" {
		name = user.Login
	}
	return Identity{Email: user.Email, DisplayName: name}, nil
}
