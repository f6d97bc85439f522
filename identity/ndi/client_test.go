package ndi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	coreconfig "github.com/evalscience/deepgov-bot/core/config"
)

func testConfig(authURL, baseURL string) coreconfig.NDIConfig {
	return coreconfig.NDIConfig{
		ClientID:         "cid",
		ClientSecret:     "secret",
		AuthURL:          authURL,
		BaseURL:          baseURL,
		WebhookID:        "hook-1",
		ProofName:        "Identity proof",
		FoundationSchema: "https://schema.example/foundation",
		FoundationAttrs:  []string{"Gender", "Date of Birth", "Citizenship"},
	}
}

func authServer(t *testing.T, tokens *atomic.Int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode auth request: %v", err)
		}
		if body["grant_type"] != "client_credentials" {
			t.Errorf("grant_type = %q, want client_credentials", body["grant_type"])
		}
		tokens.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))
}

func TestAccessTokenCached(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	c := NewClient(testConfig(auth.URL, "http://unused"))
	for i := 0; i < 3; i++ {
		tok, err := c.AccessToken(context.Background())
		if err != nil {
			t.Fatalf("AccessToken: %v", err)
		}
		if tok != "tok-123" {
			t.Fatalf("token = %q, want tok-123", tok)
		}
	}
	if got := tokens.Load(); got != 1 {
		t.Fatalf("auth endpoint hit %d times, want 1", got)
	}

	c.InvalidateToken()
	if _, err := c.AccessToken(context.Background()); err != nil {
		t.Fatalf("AccessToken after invalidate: %v", err)
	}
	if got := tokens.Load(); got != 2 {
		t.Fatalf("auth endpoint hit %d times after invalidate, want 2", got)
	}
}

func TestCreateProofRequest(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/verifier/v1/proof-request" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			ProofName       string `json:"proofName"`
			ProofAttributes []struct {
				Name string `json:"name"`
			} `json:"proofAttributes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode proof request: %v", err)
		}
		if body.ProofName != "Identity proof" {
			t.Errorf("proofName = %q", body.ProofName)
		}
		if len(body.ProofAttributes) != 3 {
			t.Errorf("got %d attributes, want 3", len(body.ProofAttributes))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{
				"proofRequestThreadId": "thread-42",
				"deepLinkURL":          "wallet://verify?x=1",
			},
		})
	}))
	defer api.Close()

	c := NewClient(testConfig(auth.URL, api.URL))
	req, err := c.CreateProofRequest(context.Background())
	if err != nil {
		t.Fatalf("CreateProofRequest: %v", err)
	}
	if req.ThreadID != "thread-42" || req.DeepLink != "wallet://verify?x=1" {
		t.Fatalf("got %+v", req)
	}
}

func TestEnsureWebhookSkipsExisting(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	var registered atomic.Int64
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/webhook/v1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"webhooks": []map[string]string{{"webhookId": "hook-1"}},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/webhook/v1/register":
			registered.Add(1)
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer api.Close()

	c := NewClient(testConfig(auth.URL, api.URL))
	if err := c.EnsureWebhook(context.Background(), "https://bot.example/webhook"); err != nil {
		t.Fatalf("EnsureWebhook: %v", err)
	}
	if got := registered.Load(); got != 0 {
		t.Fatalf("register called %d times for existing webhook, want 0", got)
	}
}

func TestEnsureWebhookToleratesConflict(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/webhook/v1":
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/webhook/v1/register":
			w.WriteHeader(http.StatusConflict)
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer api.Close()

	c := NewClient(testConfig(auth.URL, api.URL))
	if err := c.EnsureWebhook(context.Background(), "https://bot.example/webhook"); err != nil {
		t.Fatalf("conflict on register must not error, got %v", err)
	}
}

func TestSubscribeThreadConflictTolerated(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/webhook/v1/subscribe" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusConflict)
	}))
	defer api.Close()

	c := NewClient(testConfig(auth.URL, api.URL))
	if err := c.SubscribeThread(context.Background(), "thread-42"); err != nil {
		t.Fatalf("SubscribeThread: %v", err)
	}
}

func TestProofRequestErrorCarriesStatus(t *testing.T) {
	var tokens atomic.Int64
	auth := authServer(t, &tokens)
	defer auth.Close()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer api.Close()

	c := NewClient(testConfig(auth.URL, api.URL))
	_, err := c.CreateProofRequest(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("statusOf(err) = %d, want 401", statusOf(err))
	}
}
