// internal/client/user_client.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserClient is the narrow interface onto the user/auth services: token
// validation at the socket handshake plus display-info and role lookups.
// Account storage itself lives behind these calls, never here.
type UserClient interface {
	ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error)
	GetUserInfo(ctx context.Context, userID, token string) (*UserInfo, error)
}

type userClient struct {
	baseURL     string
	authBaseURL string // auth-service URL for token validation
	httpClient  *http.Client
}

type TokenValidationResponse struct {
	UserID  string `json:"userId"`
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

type UserInfo struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FullName  string `json:"fullName,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Staff roles bypass eligibility checks and are excluded from random matching.
const (
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleInstructor = "INSTRUCTOR"
)

// IsStaff reports whether the user holds a staff role.
func (u *UserInfo) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleSuperAdmin || u.Role == RoleInstructor
}

func NewUserClient(baseURL string, authBaseURL string, timeout time.Duration) UserClient {
	return &userClient{
		baseURL:     baseURL,
		authBaseURL: authBaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Token validation is delegated to the auth-service
func (c *userClient) ValidateToken(ctx context.Context, token string) (*TokenValidationResponse, error) {
	url := fmt.Sprintf("%s/api/auth/validate", c.authBaseURL)

	body := map[string]string{"token": token}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("validation failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result TokenValidationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

func (c *userClient) GetUserInfo(ctx context.Context, userID, token string) (*UserInfo, error) {
	url := fmt.Sprintf("%s/users/%s", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Service-to-service lookups (eligibility, fanout) carry no user token
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get user info failed: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}
