// Package conversation drives chat turns against the completions vendor and
// keeps per-chat response cursors for context chaining.
package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxResponseSize = 4 << 20

// Client calls the vendor's Responses API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewClient builds a Responses API client. baseURL is the API root, e.g.
// "https://api.openai.com/v1".
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type createRequest struct {
	Model              string         `json:"model"`
	Input              []inputMessage `json:"input"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	Store              bool           `json:"store"`
}

type createResponse struct {
	ID     string `json:"id"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Reply is one completed model turn.
type Reply struct {
	// ResponseID chains the next turn in the same chat.
	ResponseID string
	Text       string
}

// Create runs one turn. previousID carries the chat's last response id, or is
// empty on the first turn; responses are stored vendor-side so the id alone
// is enough to continue the thread.
func (c *Client) Create(ctx context.Context, systemPrompt, userText, previousID string) (Reply, error) {
	reqBody := createRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userText},
		},
		PreviousResponseID: previousID,
		Store:              true,
	}
	data, err := json.Marshal(reqBody)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(data))
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: post responses: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Reply{}, fmt.Errorf("conversation: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Reply{}, fmt.Errorf("conversation: vendor status %d: %s", resp.StatusCode, trimBody(body))
	}

	var parsed createResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Reply{}, fmt.Errorf("conversation: unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return Reply{}, fmt.Errorf("conversation: vendor error: %s", parsed.Error.Message)
	}
	if parsed.ID == "" {
		return Reply{}, fmt.Errorf("conversation: response without id")
	}

	var sb strings.Builder
	for _, item := range parsed.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return Reply{}, fmt.Errorf("conversation: response %s has no output text", parsed.ID)
	}
	return Reply{ResponseID: parsed.ID, Text: text}, nil
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
