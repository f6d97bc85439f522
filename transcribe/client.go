// Package transcribe converts voice notes to text through the serverless
// whisper endpoint.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evalscience/deepgov-bot/metrics"
)

// ErrNoSpeech means the job completed but produced no usable transcript.
// Callers branch on it to tell the user instead of failing the update.
var ErrNoSpeech = errors.New("transcribe: no speech detected")

const maxResponseSize = 1 << 20

// Client calls the whisper endpoint. Jobs usually finish synchronously; when
// the endpoint queues one instead, the client makes exactly one status poll
// before giving up.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client

	// pollDelay separates the runsync reply from the single status poll.
	pollDelay time.Duration
}

// NewClient builds a whisper client. baseURL points at the endpoint root,
// e.g. "https://api.runpod.ai/v2/faster-whisper".
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		client:    &http.Client{Timeout: 90 * time.Second},
		pollDelay: 3 * time.Second,
	}
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Output struct {
		Transcription string `json:"transcription"`
	} `json:"output"`
}

// Transcribe submits the audio at fileURL and returns the transcript.
// Returns ErrNoSpeech when the completed job holds an empty transcript.
func (c *Client) Transcribe(ctx context.Context, fileURL string) (string, error) {
	payload := map[string]any{
		"input": map[string]any{
			"audio":         fileURL,
			"model":         c.model,
			"transcription": "plain_text",
		},
	}
	job, err := c.call(ctx, http.MethodPost, c.baseURL+"/runsync", payload)
	if err != nil {
		metrics.Transcriptions.WithLabelValues("error").Inc()
		return "", err
	}

	if job.Status != "COMPLETED" {
		if job.ID == "" {
			metrics.Transcriptions.WithLabelValues("error").Inc()
			return "", fmt.Errorf("transcribe: job not completed (status %q) and no id to poll", job.Status)
		}
		select {
		case <-time.After(c.pollDelay):
		case <-ctx.Done():
			metrics.Transcriptions.WithLabelValues("error").Inc()
			return "", ctx.Err()
		}
		job, err = c.call(ctx, http.MethodGet, c.baseURL+"/status/"+job.ID, nil)
		if err != nil {
			metrics.Transcriptions.WithLabelValues("error").Inc()
			return "", err
		}
		if job.Status != "COMPLETED" {
			metrics.Transcriptions.WithLabelValues("timeout").Inc()
			return "", fmt.Errorf("transcribe: job %s still %q after poll", job.ID, job.Status)
		}
	}

	text := strings.TrimSpace(job.Output.Transcription)
	if text == "" {
		metrics.Transcriptions.WithLabelValues("no_speech").Inc()
		return "", ErrNoSpeech
	}
	metrics.Transcriptions.WithLabelValues("ok").Inc()
	return text, nil
}

func (c *Client) call(ctx context.Context, method, url string, payload any) (jobResponse, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return jobResponse{}, fmt.Errorf("transcribe: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return jobResponse{}, fmt.Errorf("transcribe: create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return jobResponse{}, fmt.Errorf("transcribe: %s %s: %w", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return jobResponse{}, fmt.Errorf("transcribe: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return jobResponse{}, fmt.Errorf("transcribe: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var job jobResponse
	if err := json.Unmarshal(body, &job); err != nil {
		return jobResponse{}, fmt.Errorf("transcribe: unmarshal response: %w", err)
	}
	return job, nil
}
