package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/driftchat/drift/internal/models"
)

// LoginResponse represents the response from the login endpoint
type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Login authenticates against the server's HTTP endpoint and returns the
// user record plus the session token used to identify the WebSocket.
func Login(serverAddr, username, password string) (*models.User, string, error) {
	u, err := url.Parse(serverAddr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = "/api/login"

	reqBody := map[string]string{
		"username": username,
		"password": password,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request: %w", err)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(u.String(), "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, "", fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp LoginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return nil, "", fmt.Errorf("failed to parse response: %w", err)
	}
	return loginResp.User, loginResp.Token, nil
}
