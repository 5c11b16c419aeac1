package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultHistoryLimit is the conversation window kept per sender.
	DefaultHistoryLimit = 20

	// DefaultTopK is the number of context chunks requested per retrieval.
	DefaultTopK = 5

	defaultGatewayHost = "0.0.0.0"
	defaultGatewayPort = 8080
)

// Config is the root runtime configuration, resolved from the environment.
type Config struct {
	WhatsApp   WhatsAppConfig
	Store      StoreConfig
	Pinecone   PineconeConfig
	Embedding  EmbeddingConfig
	Generation GenerationConfig
	Retrieval  RetrievalConfig
	Telegram   TelegramConfig
	Gateway    GatewayConfig
	Logging    LoggingConfig
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format    string
	Level     string
	AddSource bool
}

// WhatsAppConfig configures the WhatsApp Cloud API channel.
type WhatsAppConfig struct {
	APIToken      string
	VerifyToken   string
	PhoneNumberID string
}

// StoreConfig selects and configures the identity/history store backend.
type StoreConfig struct {
	// Backend is "supabase" or "sqlite".
	Backend      string
	SupabaseURL  string
	SupabaseKey  string
	SQLitePath   string
	HistoryLimit int
}

// PineconeConfig configures the similarity-search index.
type PineconeConfig struct {
	APIKey    string
	IndexName string
	// IndexHost overrides control-plane index resolution when set.
	IndexHost string
}

// EmbeddingConfig configures the Bedrock embedding backend.
type EmbeddingConfig struct {
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	ModelID            string
}

// GenerationConfig configures the OpenRouter chat-completion backend.
type GenerationConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// RetrievalConfig tunes context retrieval.
type RetrievalConfig struct {
	TopK int
}

// TelegramConfig configures the optional Telegram channel.
type TelegramConfig struct {
	Token     string
	AllowFrom []string
}

// GatewayConfig configures HTTP gateway bind settings.
type GatewayConfig struct {
	Host string
	Port int
}

// Load reads an optional .env file and resolves the full configuration
// from the environment. Missing backend credentials are not an error
// here; each adapter validates the settings it needs at construction.
func Load() (*Config, error) {
	// A missing .env is the normal deployed case.
	_ = godotenv.Load()

	cfg := &Config{
		WhatsApp: WhatsAppConfig{
			APIToken:      getenv("WHATSAPP_API_TOKEN"),
			VerifyToken:   getenv("WHATSAPP_VERIFY_TOKEN"),
			PhoneNumberID: getenv("PHONE_NUMBER_ID"),
		},
		Store: StoreConfig{
			Backend:      defaultString(getenv("STORE_BACKEND"), "supabase"),
			SupabaseURL:  getenv("SUPABASE_URL"),
			SupabaseKey:  getenv("SUPABASE_KEY"),
			SQLitePath:   getenv("SQLITE_PATH"),
			HistoryLimit: DefaultHistoryLimit,
		},
		Pinecone: PineconeConfig{
			APIKey:    getenv("PINECONE_API_KEY"),
			IndexName: getenv("PINECONE_INDEX_NAME"),
			IndexHost: getenv("PINECONE_INDEX_HOST"),
		},
		Embedding: EmbeddingConfig{
			AWSAccessKeyID:     getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretAccessKey: getenv("AWS_SECRET_ACCESS_KEY"),
			AWSRegion:          defaultString(getenv("AWS_REGION"), "us-east-1"),
			ModelID:            defaultString(getenv("EMBEDDING_MODEL"), "amazon.titan-embed-text-v1"),
		},
		Generation: GenerationConfig{
			APIKey:  getenv("OPENROUTER_API_KEY"),
			Model:   defaultString(getenv("OPENROUTER_MODEL_NAME"), "meta-llama/llama-3-8b-instruct"),
			BaseURL: getenv("OPENROUTER_BASE_URL"),
		},
		Retrieval: RetrievalConfig{
			TopK: DefaultTopK,
		},
		Telegram: TelegramConfig{
			Token:     getenv("TELEGRAM_BOT_TOKEN"),
			AllowFrom: parseCSV(getenv("TELEGRAM_ALLOW_FROM")),
		},
		Gateway: GatewayConfig{
			Host: defaultString(getenv("GATEWAY_HOST"), defaultGatewayHost),
			Port: defaultGatewayPort,
		},
		Logging: LoggingConfig{
			Format:    getenv("CONCIERGE_LOG_FORMAT"),
			Level:     getenv("CONCIERGE_LOG_LEVEL"),
			AddSource: parseBool(getenv("CONCIERGE_LOG_ADD_SOURCE")),
		},
	}

	if raw := getenv("GATEWAY_PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("GATEWAY_PORT is invalid: %q", raw)
		}
		cfg.Gateway.Port = port
	}

	if raw := getenv("RETRIEVAL_TOP_K"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil || topK <= 0 {
			return nil, fmt.Errorf("RETRIEVAL_TOP_K is invalid: %q", raw)
		}
		cfg.Retrieval.TopK = topK
	}

	if raw := getenv("HISTORY_LIMIT"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return nil, fmt.Errorf("HISTORY_LIMIT is invalid: %q", raw)
		}
		cfg.Store.HistoryLimit = limit
	}

	return cfg, nil
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}

	return value
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	if input == "" {
		return nil
	}

	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	if len(clean) == 0 {
		return nil
	}

	return clean
}

func parseBool(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
