package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/videostreampro/adserver/config"
)

// Auth client error constants
var (
	ErrIdentityNotVerified = errors.New("identity token was not verified")
)

// Identity is the external auth provider's view of a user
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// AuthClient verifies viewer bearer tokens against the external identity
// provider. Serving never gates on it; the result only enriches the
// impression with a trusted viewer ID.
type AuthClient interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// AuthClientImpl implements AuthClient
type AuthClientImpl struct {
	config *config.AuthProviderConfig
	client *http.Client
}

// NewAuthClient creates a new auth client instance
func NewAuthClient(cfg *config.AuthProviderConfig) AuthClient {
	return &AuthClientImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type verifyTokenRequest struct {
	Token string `json:"token"`
}

type verifyTokenResponse struct {
	Valid    bool      `json:"valid"`
	Identity *Identity `json:"identity,omitempty"`
}

// VerifyToken resolves a viewer token to an identity
func (a *AuthClientImpl) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	if a.config.BaseURL == "" {
		return nil, fmt.Errorf("auth provider base URL is not configured")
	}

	requestBody, err := json.Marshal(verifyTokenRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal verify request: %w", err)
	}

	url := a.config.BaseURL + "/api/auth/verify"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.config.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("verify request returned status %d", resp.StatusCode)
	}

	var verifyResp verifyTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&verifyResp); err != nil {
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}
	if !verifyResp.Valid || verifyResp.Identity == nil {
		return nil, ErrIdentityNotVerified
	}
	return verifyResp.Identity, nil
}
