package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "KHOJI"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultWebhookURL      = "https://wajid2912.app.n8n.cloud/webhook/person-finder"
	defaultWebhookTimeout  = 60000
	defaultDatabasePath    = "khoji.db"
	defaultLogLevel        = "info"
	defaultCookieName      = "khoji_session"
	defaultTokenTTLMinutes = 60
)

// AppConfig captures runtime configuration for the API server and CLI commands.
type AppConfig struct {
	HTTPAddress          string
	WebhookURL           string
	WebhookTimeout       time.Duration
	DatabasePath         string
	LogLevel             string
	SigningSecret        string
	SessionCookieName    string
	TokenTTL             time.Duration
	SearchRatePerMinute  int
	AllowedOrigins       []string
	requireSigningSecret bool
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("webhook.url", defaultWebhookURL)
	configViper.SetDefault("webhook.timeout_ms", defaultWebhookTimeout)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("search.rate_per_minute", 0)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load parses server configuration from viper. The signing secret is required.
func Load(configViper *viper.Viper) (AppConfig, error) {
	return load(configViper, true)
}

// LoadClient parses configuration for CLI commands that never issue session tokens.
func LoadClient(configViper *viper.Viper) (AppConfig, error) {
	return load(configViper, false)
}

func load(configViper *viper.Viper, requireSigningSecret bool) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:          configViper.GetString("http.address"),
		WebhookURL:           configViper.GetString("webhook.url"),
		WebhookTimeout:       time.Duration(configViper.GetInt64("webhook.timeout_ms")) * time.Millisecond,
		DatabasePath:         configViper.GetString("database.path"),
		LogLevel:             configViper.GetString("log.level"),
		SigningSecret:        configViper.GetString("auth.signing_secret"),
		SessionCookieName:    configViper.GetString("auth.cookie_name"),
		TokenTTL:             time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		SearchRatePerMinute:  configViper.GetInt("search.rate_per_minute"),
		AllowedOrigins:       splitList(configViper.GetStringSlice("cors.allowed_origins")),
		requireSigningSecret: requireSigningSecret,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.WebhookURL) == "" {
		return fmt.Errorf("webhook.url is required")
	}
	if parsed, err := url.Parse(c.WebhookURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("webhook.url must be an absolute url")
	}
	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook.timeout_ms must be positive")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SearchRatePerMinute < 0 {
		return fmt.Errorf("search.rate_per_minute must not be negative")
	}
	if !c.requireSigningSecret {
		return nil
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("token.ttl_minutes must be positive")
	}
	return nil
}

// splitList flattens comma separated entries. Env values arrive as one
// whitespace-split string, so "a,b" and "a, b" must both yield two items.
func splitList(values []string) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				items = append(items, trimmed)
			}
		}
	}
	return items
}
