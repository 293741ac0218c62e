package config

import (
	"os"
	"strings"
	"time"
)

type ProviderConfig struct {
	Name    string
	APIKey  string
	BaseURL string
	Model   string
}

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string

	// Providers is the ordered fallback chain. Entries without an API key
	// stay in the chain and are skipped at call time.
	Providers []ProviderConfig

	ProviderTimeout   time.Duration
	HeartbeatInterval time.Duration
}

var providerDefaults = map[string]ProviderConfig{
	"groq": {
		BaseURL: "https://api.groq.com/openai/v1",
		Model:   "llama-3.3-70b-versatile",
	},
	"azure": {
		Model: "gpt-4o-mini",
	},
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
}

func Load() Config {
	return Config{
		Env:               getenv("ENV", "dev"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		Providers:         loadProviders(getenv("PROVIDERS", "groq,azure,openai")),
		ProviderTimeout:   getduration("PROVIDER_TIMEOUT", 30*time.Second),
		HeartbeatInterval: getduration("HEARTBEAT_INTERVAL", 30*time.Second),
	}
}

func loadProviders(raw string) []ProviderConfig {
	names := strings.Split(raw, ",")
	out := make([]ProviderConfig, 0, len(names))

	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}

		defaults := providerDefaults[name]
		prefix := strings.ToUpper(name)

		out = append(out, ProviderConfig{
			Name:    name,
			APIKey:  os.Getenv(prefix + "_API_KEY"),
			BaseURL: getenv(prefix+"_BASE_URL", defaults.BaseURL),
			Model:   getenv(prefix+"_MODEL", defaults.Model),
		})
	}

	return out
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func getduration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
