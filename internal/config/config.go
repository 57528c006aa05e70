// Package config provides environment configuration for the API server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	CORSAllowedOrigins []string

	// Database settings
	DBDriver string
	DBDSN    string

	// NATS settings; an empty URL disables exchange events
	NATSURL      string
	NATSToken    string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string

	// JWT settings
	JWTSecret string

	// Coarse per-client limit applied to every API route
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// AI assistant
	AIProvider        string
	AIRateLimitPerMin int
	AITimeout         time.Duration
	AICacheTTL        time.Duration

	OllamaModel   string
	OllamaBaseURL string

	GeminiModel   string
	GeminiAPIKey  string
	GeminiBaseURL string

	OpenAIModel  string
	OpenAIAPIKey string

	AnthropicModel  string
	AnthropicAPIKey string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. When CONFIG_FILE
// names a YAML file, its keys (lower-cased variable names) provide values
// for variables that are unset.
func Load() (*Config, error) {
	src := source{}
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		file, err := parseFile(data)
		if err != nil {
			return nil, err
		}
		src.file = file
	}
	return src.load(), nil
}

func (s source) load() *Config {
	return &Config{
		// Server
		ServerPort:         s.getEnv("PORT", "8080"),
		ServerReadTimeout:  s.getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: s.getDurationEnv("SERVER_WRITE_TIMEOUT", 60*time.Second),
		CORSAllowedOrigins: s.getListEnv("CORS_ALLOWED_ORIGINS", []string{"https://*", "http://*"}),

		// Database
		DBDriver: s.getEnv("DB_DRIVER", "sqlite"),
		DBDSN:    s.getEnv("DB_DSN", "gym.db?_foreign_keys=on"),

		// NATS
		NATSURL:      s.getEnv("NATS_URL", ""),
		NATSToken:    s.getEnv("NATS_TOKEN", ""),
		NATSCAFile:   s.getEnv("NATS_CA_FILE", ""),
		NATSCertFile: s.getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  s.getEnv("NATS_KEY_FILE", ""),

		// JWT
		JWTSecret: s.getEnv("JWT_SECRET", "development-secret-change-in-production"),

		// Rate limiting
		RateLimitRequests: s.getIntEnv("API_RATE_LIMIT_REQUESTS", 120),
		RateLimitWindow:   s.getDurationEnv("API_RATE_LIMIT_WINDOW", time.Minute),

		// AI
		AIProvider:        strings.ToLower(strings.TrimSpace(s.getEnv("AI_PROVIDER", "ollama"))),
		AIRateLimitPerMin: s.getIntEnv("AI_RATE_LIMIT_PER_MIN", 12),
		AITimeout:         s.getSecondsEnv("AI_TIMEOUT_SECONDS", 20*time.Second),
		AICacheTTL:        s.getSecondsEnv("AI_CACHE_SECONDS", 120*time.Second),

		OllamaModel:   s.getEnv("OLLAMA_MODEL", "qwen2.5:7b"),
		OllamaBaseURL: s.getEnv("OLLAMA_BASE_URL", "http://127.0.0.1:11434"),

		GeminiModel:   s.getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiAPIKey:  s.getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL: s.getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		OpenAIModel:  s.getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey: s.getEnv("OPENAI_API_KEY", ""),

		AnthropicModel:  s.getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		AnthropicAPIKey: s.getEnv("ANTHROPIC_API_KEY", ""),

		// Logging
		LogLevel: s.getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: s.getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  s.getBoolEnv("TRACING_ENABLED", false),
	}
}

// source resolves a key from the environment first, then the config file.
type source struct {
	file map[string]string
}

func parseFile(data []byte) (map[string]string, error) {
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	file := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			file[strings.ToLower(k)] = strings.Join(parts, ",")
		default:
			file[strings.ToLower(k)] = fmt.Sprint(val)
		}
	}
	return file, nil
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[strings.ToLower(key)]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getIntEnv(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getBoolEnv(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (s source) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getSecondsEnv reads a whole or fractional number of seconds.
func (s source) getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return defaultValue
}

func (s source) getListEnv(key string, defaultValue []string) []string {
	value := s.lookup(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
