package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/driftchat/drift/internal/models"
)

const historyPageSize = 50

// fetchHistory loads the page of messages before the given seq over HTTP.
// The result comes back as a historyMsg; the store merges it by seq.
func fetchHistory(serverAddr, token string, channelID uuid.UUID, beforeSeq int64) tea.Cmd {
	return func() tea.Msg {
		page, err := loadHistoryPage(serverAddr, token, channelID, beforeSeq)
		return historyMsg{channelID: channelID, page: page, err: err}
	}
}

func loadHistoryPage(serverAddr, token string, channelID uuid.UUID, beforeSeq int64) ([]*models.Message, error) {
	u, err := url.Parse(serverAddr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = fmt.Sprintf("/api/channels/%s/messages", channelID)
	q := u.Query()
	q.Set("before", fmt.Sprintf("%d", beforeSeq))
	q.Set("limit", fmt.Sprintf("%d", historyPageSize))
	u.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var out struct {
		Messages []*models.Message `json:"messages"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return out.Messages, nil
}
