package conversation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-1" {
			t.Errorf("Authorization = %q", got)
		}
		var body createRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "gpt-test" || !body.Store {
			t.Errorf("model=%q store=%v", body.Model, body.Store)
		}
		if body.PreviousResponseID != "resp-0" {
			t.Errorf("previous_response_id = %q", body.PreviousResponseID)
		}
		if len(body.Input) != 2 || body.Input[0].Role != "system" || body.Input[1].Role != "user" {
			t.Errorf("input = %+v", body.Input)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "resp-1",
			"output": []map[string]any{
				{"type": "reasoning"},
				{"type": "message", "content": []map[string]string{
					{"type": "output_text", "text": "hello "},
					{"type": "output_text", "text": "there"},
				}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "gpt-test")
	reply, err := c.Create(context.Background(), "sys", "hi", "resp-0")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if reply.ResponseID != "resp-1" {
		t.Fatalf("response id = %q", reply.ResponseID)
	}
	if reply.Text != "hello there" {
		t.Fatalf("text = %q", reply.Text)
	}
}

func TestCreateOmitsEmptyPreviousID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if _, ok := raw["previous_response_id"]; ok {
			t.Error("previous_response_id must be omitted on the first turn")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "resp-1",
			"output": []map[string]any{
				{"type": "message", "content": []map[string]string{{"type": "output_text", "text": "ok"}}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "gpt-test")
	if _, err := c.Create(context.Background(), "sys", "hi", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func TestCreateVendorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("key-1", srv.URL, "gpt-test")
	if _, err := c.Create(context.Background(), "sys", "hi", ""); err == nil {
		t.Fatal("expected error on 429")
	}
}
