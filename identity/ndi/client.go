// Package ndi implements the NDI-style verifier: OAuth2 client-credentials
// authentication, webhook registration, and proof-request creation.
package ndi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	coreconfig "github.com/evalscience/deepgov-bot/core/config"
)

// maxResponseSize bounds vendor response bodies (1 MB).
const maxResponseSize = 1 << 20

// Client is a thin wrapper over the verifier's HTTP API. It caches the
// access token in memory; concurrent refreshes are collapsed via
// singleflight.
type Client struct {
	cfg    coreconfig.NDIConfig
	client *http.Client

	mu    sync.Mutex
	token string

	refresh singleflight.Group
}

// NewClient builds a verifier client from configuration.
func NewClient(cfg coreconfig.NDIConfig) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError reports a non-2xx vendor response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ndi: unexpected status %d: %s", e.Status, e.Body)
}

func statusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

// AccessToken returns a cached client-credentials token, fetching one when
// the cache is empty.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	cached := c.token
	c.mu.Unlock()
	if cached != "" {
		return cached, nil
	}

	v, err, _ := c.refresh.Do("token", func() (any, error) {
		return c.fetchToken(ctx)
	})
	if err != nil {
		return "", err
	}
	token := v.(string)

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// InvalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) InvalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Client) fetchToken(ctx context.Context) (string, error) {
	payload := map[string]string{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "client_credentials",
	}
	body, status, err := c.doJSON(ctx, http.MethodPost, c.cfg.AuthURL, payload, "")
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &StatusError{Status: status, Body: trimBody(body)}
	}

	var res struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("ndi: unmarshal token response: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("ndi: empty access token in response")
	}
	return res.AccessToken, nil
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, payload any, token string) ([]byte, int, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("ndi: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("ndi: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("ndi: %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("ndi: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// authed performs an authenticated call against a verifier endpoint.
func (c *Client) authed(ctx context.Context, method, rawURL string, payload any) ([]byte, int, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, 0, err
	}
	return c.doJSON(ctx, method, rawURL, payload, token)
}

// WebhookExists reports whether the configured webhook id is registered.
func (c *Client) WebhookExists(ctx context.Context) (bool, error) {
	q := url.Values{}
	q.Set("pageSize", "10")
	q.Set("page", "1")
	q.Set("webhookId", c.cfg.WebhookID)

	body, status, err := c.authed(ctx, http.MethodGet, c.cfg.BaseURL+"/webhook/v1?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}
	if status == http.StatusNotFound {
		return false, nil
	}
	if status < 200 || status >= 300 {
		return false, &StatusError{Status: status, Body: trimBody(body)}
	}

	var res struct {
		Data struct {
			Webhooks []struct {
				WebhookID string `json:"webhookId"`
			} `json:"webhooks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return false, fmt.Errorf("ndi: unmarshal webhook list: %w", err)
	}
	for _, wh := range res.Data.Webhooks {
		if wh.WebhookID == c.cfg.WebhookID {
			return true, nil
		}
	}
	return false, nil
}

// EnsureWebhook registers the callback URL unless it already exists.
// A conflict response means another instance won the registration race and
// is not an error.
func (c *Client) EnsureWebhook(ctx context.Context, callbackURL string) error {
	exists, err := c.WebhookExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	token, err := c.AccessToken(ctx)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"webhookId":  c.cfg.WebhookID,
		"webhookURL": callbackURL,
		"authentication": map[string]any{
			"type":    "OAuth2",
			"version": "v2",
			"data":    map[string]string{"token": token},
		},
	}
	body, status, err := c.authed(ctx, http.MethodPost, c.cfg.BaseURL+"/webhook/v1/register", payload)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		return nil
	}
	if status < 200 || status >= 300 {
		return &StatusError{Status: status, Body: trimBody(body)}
	}
	return nil
}

// ProofRequest is the verifier's answer to a proof-request creation call.
type ProofRequest struct {
	ThreadID string
	DeepLink string
}

// CreateProofRequest asks the verifier for a new proof request covering the
// configured attribute schemas.
func (c *Client) CreateProofRequest(ctx context.Context) (ProofRequest, error) {
	type restriction struct {
		SchemaName string `json:"schema_name"`
	}
	type attribute struct {
		Name         string        `json:"name"`
		Restrictions []restriction `json:"restrictions"`
	}

	var attrs []attribute
	for _, name := range c.cfg.FoundationAttrs {
		attrs = append(attrs, attribute{Name: name, Restrictions: []restriction{{SchemaName: c.cfg.FoundationSchema}}})
	}
	for _, name := range c.cfg.AddressAttrs {
		attrs = append(attrs, attribute{Name: name, Restrictions: []restriction{{SchemaName: c.cfg.AddressSchema}}})
	}

	payload := map[string]any{
		"proofName":       c.cfg.ProofName,
		"proofAttributes": attrs,
	}
	body, status, err := c.authed(ctx, http.MethodPost, c.cfg.BaseURL+"/verifier/v1/proof-request", payload)
	if err != nil {
		return ProofRequest{}, err
	}
	if status < 200 || status >= 300 {
		return ProofRequest{}, &StatusError{Status: status, Body: trimBody(body)}
	}

	var res struct {
		Data struct {
			ProofRequestThreadID string `json:"proofRequestThreadId"`
			DeepLinkURL          string `json:"deepLinkURL"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return ProofRequest{}, fmt.Errorf("ndi: unmarshal proof request: %w", err)
	}
	if res.Data.ProofRequestThreadID == "" {
		return ProofRequest{}, fmt.Errorf("ndi: proof request without thread id")
	}
	return ProofRequest{ThreadID: res.Data.ProofRequestThreadID, DeepLink: res.Data.DeepLinkURL}, nil
}

// SubscribeThread subscribes the webhook to a proof-request thread.
// Conflict means already subscribed and is tolerated.
func (c *Client) SubscribeThread(ctx context.Context, threadID string) error {
	payload := map[string]string{
		"webhookId": c.cfg.WebhookID,
		"threadId":  threadID,
	}
	body, status, err := c.authed(ctx, http.MethodPost, c.cfg.BaseURL+"/webhook/v1/subscribe", payload)
	if err != nil {
		return err
	}
	if status == http.StatusConflict {
		return nil
	}
	if status < 200 || status >= 300 {
		return &StatusError{Status: status, Body: trimBody(body)}
	}
	return nil
}

func trimBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}
