package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/quillnotes/auth-service/internal/domain"
)

const (
	googleAuthorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL     = "https://oauth2.googleapis.com/token"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// Google implements Provider for Google accounts
type Google struct {
	clientID     string
	clientSecret string
	redirectURL  string
	client       *http.Client
}

// NewGoogle creates a Google provider
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURL:  redirectURL,
		client:       newHTTPClient(),
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) BeginAuth(_ context.Context, state string) (string, error) {
	params := url.Values{}
	params.Set("client_id", g.clientID)
	params.Set("redirect_uri", g.redirectURL)
	params.Set("scope", "openid email profile")
	params.Set("response_type", "code")
	params.Set("state", state)

	return googleAuthorizeURL + "?" + params.Encode(), nil
}

func (g *Google) CompleteAuth(ctx context.Context, code string) (*domain.ProviderProfile, error) {
	token, err := g.exchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", errorJoinProvider(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("user info returned status %d: %s: %w", resp.StatusCode, body, domain.ErrAuthProvider)
	}

	var googleUser struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&googleUser); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", errorJoinProvider(err))
	}
	if googleUser.Email == "" {
		return nil, fmt.Errorf("no email on Google account: %w", domain.ErrAuthProvider)
	}

	// Google has no separate username; derive one from the email local part.
	username := googleUser.Email
	if at := strings.IndexByte(username, '@'); at > 0 {
		username = username[:at]
	}

	return &domain.ProviderProfile{
		ID:       googleUser.ID,
		Email:    googleUser.Email,
		Username: username,
		Name:     googleUser.Name,
		ImageURL: googleUser.Picture,
	}, nil
}

func (g *Google) exchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{}
	data.Set("client_id", g.clientID)
	data.Set("client_secret", g.clientSecret)
	data.Set("code", code)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", g.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

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
