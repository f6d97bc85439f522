package conversation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	coreconfig "github.com/evalscience/deepgov-bot/core/config"
	"github.com/evalscience/deepgov-bot/core/logger"
)

// personaPath is where persona repos keep the agent's system prompt.
const personaPath = "modelspec.md"

// LoadSystemPrompt resolves the system prompt from, in order: a remote
// persona repository, a local prompt file, the inline config value. A failed
// remote fetch falls back instead of blocking startup.
func LoadSystemPrompt(ctx context.Context, cfg coreconfig.AIConfig) string {
	if cfg.PersonaRepo != "" {
		prompt, err := FetchPersona(ctx, cfg.PersonaRepo)
		if err == nil {
			return prompt
		}
		logger.Warn(ctx, "ai", "persona.fetch_failed",
			slog.String("repo", cfg.PersonaRepo),
			slog.String("error", err.Error()),
		)
	}

	if cfg.PromptFile != "" {
		data, err := os.ReadFile(cfg.PromptFile)
		if err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return strings.TrimSpace(string(data))
		}
		if err != nil {
			logger.Warn(ctx, "ai", "persona.file_failed",
				slog.String("path", cfg.PromptFile),
				slog.String("error", err.Error()),
			)
		}
	}

	return cfg.SystemPrompt
}

// FetchPersona pulls the persona spec from a GitHub repository, given as
// "owner/repo" or "owner/repo@ref".
func FetchPersona(ctx context.Context, repo string) (string, error) {
	ref := "main"
	if at := strings.IndexByte(repo, '@'); at >= 0 {
		ref = repo[at+1:]
		repo = repo[:at]
	}
	url := fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", repo, ref, personaPath)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("conversation: persona request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("conversation: fetch persona: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("conversation: persona fetch status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("conversation: read persona: %w", err)
	}
	prompt := strings.TrimSpace(string(body))
	if prompt == "" {
		return "", fmt.Errorf("conversation: persona file is empty")
	}
	return prompt, nil
}
