package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings. Updates are fetched
// via long polling; the webhook listener below belongs to the identity
// provider, not to Telegram.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig specifies the identity-callback HTTP server settings.
// PublicURL is the externally reachable base URL registered with the
// identity provider; when empty it is resolved from the Cloud Run metadata
// server at startup.
type WebhookConfig struct {
	Listen    string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port      int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	Path      string `yaml:"path" envconfig:"WEBHOOK_PATH"`
	PublicURL string `yaml:"public_url" envconfig:"WEBHOOK_PUBLIC_URL"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format  string `yaml:"format" envconfig:"LOG_FORMAT"`
	Dir     string `yaml:"dir"`
	File    string `yaml:"file"`
	Profile string `yaml:"profile" envconfig:"LOG_PROFILE"`
}

// RateLimitConfig bounds per-session request admission: at most Ceiling
// requests within a sliding Window.
type RateLimitConfig struct {
	Window  time.Duration `yaml:"window" envconfig:"RATE_LIMIT_WINDOW"`
	Ceiling int           `yaml:"ceiling" envconfig:"RATE_LIMIT_CEILING"`
}

// AIConfig configures the conversational completions vendor.
type AIConfig struct {
	APIKey       string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL      string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model        string `yaml:"model" envconfig:"OPENAI_MODEL"`
	SystemPrompt string `yaml:"system_prompt"`
	// PromptFile, when set, overrides SystemPrompt with file contents.
	PromptFile string `yaml:"prompt_file" envconfig:"AI_PROMPT_FILE"`
	// PersonaRepo optionally names a GitHub repo (owner/name) whose agents/
	// directory carries modelspec style and constitution markdown used to
	// assemble the system prompt at startup.
	PersonaRepo string `yaml:"persona_repo" envconfig:"AI_PERSONA_REPO"`
}

// TranscribeConfig configures the speech-to-text vendor.
type TranscribeConfig struct {
	APIKey  string `yaml:"api_key" envconfig:"WHISPER_API_KEY"`
	BaseURL string `yaml:"base_url" envconfig:"WHISPER_BASE_URL"`
	Model   string `yaml:"model" envconfig:"WHISPER_MODEL"`
}

// NDIConfig holds settings for the NDI-style verifier provider.
type NDIConfig struct {
	ClientID         string   `yaml:"client_id" envconfig:"NDI_CLIENT_ID"`
	ClientSecret     string   `yaml:"client_secret" envconfig:"NDI_CLIENT_SECRET"`
	AuthURL          string   `yaml:"auth_url" envconfig:"NDI_AUTH_URL"`
	BaseURL          string   `yaml:"base_url" envconfig:"NDI_BASE_URL"`
	WebhookID        string   `yaml:"webhook_id" envconfig:"NDI_WEBHOOK_ID"`
	ProofName        string   `yaml:"proof_name"`
	FoundationSchema string   `yaml:"foundation_schema"`
	AddressSchema    string   `yaml:"address_schema"`
	FoundationAttrs  []string `yaml:"foundation_attrs"`
	AddressAttrs     []string `yaml:"address_attrs"`
}

// SelfConfig holds settings for the Self-style deep-link provider.
type SelfConfig struct {
	AppName  string `yaml:"app_name" envconfig:"SELF_APP_NAME"`
	Scope    string `yaml:"scope" envconfig:"SELF_SCOPE"`
	Endpoint string `yaml:"endpoint" envconfig:"SELF_ENDPOINT"`
	LinkBase string `yaml:"link_base" envconfig:"SELF_LINK_BASE"`
}

// IdentityConfig selects and configures the identity provider adapter.
type IdentityConfig struct {
	Provider string     `yaml:"provider" envconfig:"IDENTITY_PROVIDER"`
	LinkURL  string     `yaml:"link_url" envconfig:"LINK_URL"`
	NDI      NDIConfig  `yaml:"ndi"`
	Self     SelfConfig `yaml:"self"`
}

// SecurityConfig carries the pseudonymization secret.
type SecurityConfig struct {
	HMACSecret string `yaml:"hmac_secret" envconfig:"HMAC_SECRET_KEY"`
}

// ClaimConfig gates the /claim command on recorded conversation turns.
type ClaimConfig struct {
	MinTurns int `yaml:"min_turns" envconfig:"CLAIM_MIN_TURNS"`
}

const (
	// ProviderNDI selects the webhook-driven verifier adapter.
	ProviderNDI = "ndi"
	// ProviderSelf selects the deep-link builder adapter.
	ProviderSelf = "self"
)

// Config aggregates the full bot configuration.
type Config struct {
	Telegram   TelegramConfig   `yaml:"telegram"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Logging    LoggingConfig    `yaml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	AI         AIConfig         `yaml:"ai"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Identity   IdentityConfig   `yaml:"identity"`
	Security   SecurityConfig   `yaml:"security"`
	Claim      ClaimConfig      `yaml:"claim"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	if cfg.Telegram.LongPollTimeoutSeconds < 0 {
		return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
	}

	if strings.TrimSpace(cfg.Webhook.Listen) == "" {
		cfg.Webhook.Listen = "0.0.0.0"
	}
	if cfg.Webhook.Port <= 0 {
		cfg.Webhook.Port = 3000
	}
	if strings.TrimSpace(cfg.Webhook.Path) == "" {
		cfg.Webhook.Path = "/webhook"
	}
	if !strings.HasPrefix(cfg.Webhook.Path, "/") {
		cfg.Webhook.Path = "/" + cfg.Webhook.Path
	}

	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = time.Hour
	}
	if cfg.RateLimit.Ceiling <= 0 {
		cfg.RateLimit.Ceiling = 100
	}

	if cfg.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required")
	}
	if strings.TrimSpace(cfg.AI.BaseURL) == "" {
		cfg.AI.BaseURL = "https://api.openai.com/v1"
	}
	cfg.AI.BaseURL = strings.TrimRight(cfg.AI.BaseURL, "/")
	if strings.TrimSpace(cfg.AI.Model) == "" {
		cfg.AI.Model = "gpt-4o-mini"
	}
	if cfg.AI.PromptFile != "" {
		data, err := os.ReadFile(cfg.AI.PromptFile)
		if err != nil {
			return fmt.Errorf("failed to read ai.prompt_file: %w", err)
		}
		cfg.AI.SystemPrompt = string(data)
	}
	if strings.TrimSpace(cfg.AI.SystemPrompt) == "" && cfg.AI.PersonaRepo == "" {
		return fmt.Errorf("ai.system_prompt, ai.prompt_file or ai.persona_repo is required")
	}

	if strings.TrimSpace(cfg.Transcribe.BaseURL) == "" {
		cfg.Transcribe.BaseURL = "https://api.runpod.ai/v2/faster-whisper"
	}
	cfg.Transcribe.BaseURL = strings.TrimRight(cfg.Transcribe.BaseURL, "/")
	if strings.TrimSpace(cfg.Transcribe.Model) == "" {
		cfg.Transcribe.Model = "small"
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Identity.Provider))
	if provider == "" {
		provider = ProviderNDI
	}
	switch provider {
	case ProviderNDI:
		ndi := &cfg.Identity.NDI
		if ndi.ClientID == "" || ndi.ClientSecret == "" {
			return fmt.Errorf("identity.ndi.client_id and client_secret are required for the ndi provider")
		}
		if strings.TrimSpace(ndi.AuthURL) == "" {
			return fmt.Errorf("identity.ndi.auth_url is required")
		}
		if strings.TrimSpace(ndi.BaseURL) == "" {
			return fmt.Errorf("identity.ndi.base_url is required")
		}
		ndi.BaseURL = strings.TrimRight(ndi.BaseURL, "/")
		if strings.TrimSpace(ndi.WebhookID) == "" {
			return fmt.Errorf("identity.ndi.webhook_id is required")
		}
		if strings.TrimSpace(ndi.ProofName) == "" {
			ndi.ProofName = "Telegram Identity Auth"
		}
		if len(ndi.FoundationAttrs) == 0 {
			ndi.FoundationAttrs = []string{"Gender", "Date of Birth", "Citizenship"}
		}
		if len(ndi.AddressAttrs) == 0 && ndi.AddressSchema != "" {
			ndi.AddressAttrs = []string{"Village", "Gewog", "Dzongkhag"}
		}
	case ProviderSelf:
		self := &cfg.Identity.Self
		if strings.TrimSpace(self.Endpoint) == "" {
			return fmt.Errorf("identity.self.endpoint is required for the self provider")
		}
		if strings.TrimSpace(self.Scope) == "" {
			return fmt.Errorf("identity.self.scope is required")
		}
		if strings.TrimSpace(self.AppName) == "" {
			self.AppName = "Telegram Bot"
		}
		if strings.TrimSpace(self.LinkBase) == "" {
			self.LinkBase = "https://redirect.self.xyz"
		}
	default:
		return fmt.Errorf("invalid identity.provider %q; allowed: ndi, self", cfg.Identity.Provider)
	}
	cfg.Identity.Provider = provider

	if cfg.Claim.MinTurns <= 0 {
		cfg.Claim.MinTurns = 3
	}

	return nil
}
