package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

type Config struct {
	Port            int
	LogLevel        string
	Provider        string
	AnthropicAPIKey string
	GeminiAPIKey    string
	JudgeModel      string
	ReplyModel      string
	JudgeMode       string
	JudgeTimeout    time.Duration
	ReplyTimeout    time.Duration
	MaxInFlight     int
	AllowedOrigins  []string
	ScriptPath      string
	NatsURL         string
	NatsToken       string
	RedisURL        string
	JudgeCacheTTL   time.Duration
}

var defaultOrigins = "https://unc.az1.qualtrics.com,https://unc.pdx1.qualtrics.com"

var defaultModels = map[string][2]string{
	ProviderAnthropic: {"claude-3-5-haiku-latest", "claude-sonnet-4-20250514"},
	ProviderGemini:    {"gemini-2.0-flash", "gemini-2.0-flash"},
}

func Load() Config {
	provider := strings.ToLower(envStr("LLM_PROVIDER", ProviderAnthropic))
	models, ok := defaultModels[provider]
	if !ok {
		models = defaultModels[ProviderAnthropic]
	}

	return Config{
		Port:            envInt("VIGNETTE_PORT", 8080),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		Provider:        provider,
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    envStr("GEMINI_API_KEY", ""),
		JudgeModel:      envStr("JUDGE_MODEL", models[0]),
		ReplyModel:      envStr("REPLY_MODEL", models[1]),
		JudgeMode:       envStr("JUDGE_MODE", "verdict"),
		JudgeTimeout:    envDuration("JUDGE_TIMEOUT", 15*time.Second),
		ReplyTimeout:    envDuration("REPLY_TIMEOUT", 60*time.Second),
		MaxInFlight:     envInt("MAX_IN_FLIGHT", 16),
		AllowedOrigins:  envList("CORS_ALLOWED_ORIGINS", defaultOrigins),
		ScriptPath:      envStr("INTERVIEW_SCRIPT", ""),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
		RedisURL:        envStr("REDIS_URL", ""),
		JudgeCacheTTL:   envDuration("JUDGE_CACHE_TTL", 30*time.Minute),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(envStr(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
