package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestTranscribeSyncCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/runsync" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body struct {
			Input struct {
				Audio string `json:"audio"`
				Model string `json:"model"`
			} `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Input.Audio != "https://files.example/voice.oga" || body.Input.Model != "small" {
			t.Errorf("input = %+v", body.Input)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-1",
			"status": "COMPLETED",
			"output": map[string]string{"transcription": " hello world "},
		})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "small")
	text, err := c.Transcribe(context.Background(), "https://files.example/voice.oga")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Fatalf("text = %q", text)
	}
}

func TestTranscribeSinglePoll(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runsync":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-2", "status": "IN_QUEUE"})
		case "/status/job-2":
			polls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "job-2",
				"status": "COMPLETED",
				"output": map[string]string{"transcription": "queued result"},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "small")
	c.pollDelay = time.Millisecond

	text, err := c.Transcribe(context.Background(), "https://files.example/voice.oga")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "queued result" {
		t.Fatalf("text = %q", text)
	}
	if got := polls.Load(); got != 1 {
		t.Fatalf("status polled %d times, want exactly 1", got)
	}
}

func TestTranscribeGivesUpAfterOnePoll(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/runsync":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-3", "status": "IN_PROGRESS"})
		default:
			polls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "job-3", "status": "IN_PROGRESS"})
		}
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "small")
	c.pollDelay = time.Millisecond

	if _, err := c.Transcribe(context.Background(), "https://files.example/voice.oga"); err == nil {
		t.Fatal("expected error for job that never completes")
	}
	if got := polls.Load(); got != 1 {
		t.Fatalf("status polled %d times, want exactly 1", got)
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "job-4",
			"status": "COMPLETED",
			"output": map[string]string{"transcription": "   "},
		})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL, "small")
	_, err := c.Transcribe(context.Background(), "https://files.example/voice.oga")
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("err = %v, want ErrNoSpeech", err)
	}
}
