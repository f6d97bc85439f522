// Package cloudrun discovers the service's public URL from the GCP metadata
// server when running on Cloud Run.
package cloudrun

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const metadataBase = "http://metadata.google.internal/computeMetadata/v1"

// OnCloudRun reports whether the process runs on Cloud Run, based on the
// environment the platform injects.
func OnCloudRun() bool {
	return os.Getenv("K_SERVICE") != ""
}

func metadataGet(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataBase+path, nil)
	if err != nil {
		return "", fmt.Errorf("cloudrun: metadata request: %w", err)
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudrun: metadata query %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloudrun: metadata query %s: status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("cloudrun: read metadata: %w", err)
	}
	return strings.TrimSpace(string(body)), nil
}

// ProjectID returns the GCP project id from the metadata server.
func ProjectID(ctx context.Context) (string, error) {
	return metadataGet(ctx, "/project/project-id")
}

// Region returns the short region name, e.g. "asia-south1". The metadata
// value has the form "projects/<num>/regions/<region>".
func Region(ctx context.Context) (string, error) {
	full, err := metadataGet(ctx, "/instance/region")
	if err != nil {
		return "", err
	}
	if i := strings.LastIndexByte(full, '/'); i >= 0 {
		return full[i+1:], nil
	}
	return full, nil
}

// ServiceURL resolves the deployed service's public URL through the Cloud Run
// admin API, using the metadata server for project, region, and credentials.
func ServiceURL(ctx context.Context) (string, error) {
	service := os.Getenv("K_SERVICE")
	if service == "" {
		return "", fmt.Errorf("cloudrun: not running on Cloud Run")
	}

	project, err := ProjectID(ctx)
	if err != nil {
		return "", err
	}
	region, err := Region(ctx)
	if err != nil {
		return "", err
	}
	token, err := metadataGet(ctx, "/instance/service-accounts/default/token")
	if err != nil {
		return "", err
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal([]byte(token), &tok); err != nil {
		return "", fmt.Errorf("cloudrun: unmarshal token: %w", err)
	}

	url := fmt.Sprintf("https://run.googleapis.com/v2/projects/%s/locations/%s/services/%s", project, region, service)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("cloudrun: service request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("cloudrun: query service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cloudrun: query service: status %d", resp.StatusCode)
	}
	var svc struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&svc); err != nil {
		return "", fmt.Errorf("cloudrun: decode service: %w", err)
	}
	if svc.URI == "" {
		return "", fmt.Errorf("cloudrun: service has no uri")
	}
	return svc.URI, nil
}
