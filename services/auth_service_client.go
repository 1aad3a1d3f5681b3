// services/auth_service_client.go
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"daily-challenge-service/utils"
)

// AuthServiceClient validates end-user tokens against the identity provider.
// Only the SSE stream needs it; every other route trusts the gateway headers.
type AuthServiceClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	Log     *utils.Logger
}

type ValidateResponse struct {
	UserID   string `json:"user_id"`
	DeviceID string `json:"device_id"`
	Premium  bool   `json:"is_premium"`
	Timezone string `json:"timezone"`
}

// Identity converts the validation response into the caller identity.
func (r ValidateResponse) Identity() Identity {
	return Identity{UserID: r.UserID, Premium: r.Premium, Timezone: r.Timezone}
}

func NewAuthServiceClient(baseURL, token string, log *utils.Logger) *AuthServiceClient {
	return &AuthServiceClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  utils.HTTPClient,
		Log:     log,
	}
}

// ValidateToken calls /auth/validate on the identity provider.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken, deviceID string) (*ValidateResponse, error) {
	url := fmt.Sprintf("%s/auth/validate", c.BaseURL)

	jsonData, err := json.Marshal(map[string]interface{}{
		"access_token": accessToken,
		"device_id":    deviceID,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		c.Log.Warn("[AUTH] validate rejected", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("auth validation failed: %d", resp.StatusCode)
	}

	var out ValidateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	return &out, nil
}
