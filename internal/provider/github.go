package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/quillnotes/auth-service/internal/domain"
)

const (
	githubAuthorizeURL = "https://github.com/login/oauth/authorize"
	githubTokenURL     = "https://github.com/login/oauth/access_token"
	githubUserURL      = "https://api.github.com/user"
	githubEmailsURL    = "https://api.github.com/user/emails"
)

// GitHub implements Provider for github.com
type GitHub struct {
	clientID     string
	clientSecret string
	redirectURL  string
	client       *http.Client
}

// NewGitHub creates a GitHub provider
func NewGitHub(clientID, clientSecret, redirectURL string) *GitHub {
	return &GitHub{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		client:       newHTTPClient(),
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) BeginAuth(_ context.Context, state string) (string, error) {
	params := url.Values{}
	params.Set("client_id", g.clientID)
	params.Set("redirect_uri", g.redirectURL)
	params.Set("scope", "user:email")
	params.Set("state", state)

	return githubAuthorizeURL + "?" + params.Encode(), nil
}

func (g *GitHub) CompleteAuth(ctx context.Context, code string) (*domain.ProviderProfile, error) {
	token, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	var ghUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
	}
	if err := g.getJSON(ctx, githubUserURL, token, &ghUser); err != nil {
		return nil, err
	}

	email := ghUser.Email
	if email == "" {
		email, err = g.primaryEmail(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	return &domain.ProviderProfile{
		ID:       strconv.FormatInt(ghUser.ID, 10),
		Email:    email,
		Username: ghUser.Login,
		Name:     ghUser.Name,
		ImageURL: ghUser.AvatarURL,
	}, nil
}

func (g *GitHub) exchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("client_id", g.clientID)
	data.Set("client_secret", g.clientSecret)
	data.Set("code", code)
	data.Set("redirect_uri", g.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, githubTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", errorJoinProvider(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token exchange returned status %d: %s: %w", resp.StatusCode, body, domain.ErrAuthProvider)
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", errorJoinProvider(err))
	}
	if tokenResponse.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned no token: %w", domain.ErrAuthProvider)
	}

	return tokenResponse.AccessToken, nil
}

// primaryEmail falls back to the emails API when the profile hides the
// address.
func (g *GitHub) primaryEmail(ctx context.Context, token string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := g.getJSON(ctx, githubEmailsURL, token, &emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}

	return "", fmt.Errorf("no verified primary email on GitHub account: %w", domain.ErrAuthProvider)
}

func (g *GitHub) getJSON(ctx context.Context, endpoint, token string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, errorJoinProvider(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned status %d: %s: %w", endpoint, resp.StatusCode, body, domain.ErrAuthProvider)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, errorJoinProvider(err))
	}

	return nil
}
