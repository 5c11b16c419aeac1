package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Store.HistoryLimit != DefaultHistoryLimit {
		t.Fatalf("history limit = %d, want %d", cfg.Store.HistoryLimit, DefaultHistoryLimit)
	}
	if cfg.Retrieval.TopK != DefaultTopK {
		t.Fatalf("top_k = %d, want %d", cfg.Retrieval.TopK, DefaultTopK)
	}
	if cfg.Store.Backend != "supabase" {
		t.Fatalf("store backend = %q, want %q", cfg.Store.Backend, "supabase")
	}
	if cfg.Embedding.AWSRegion != "us-east-1" {
		t.Fatalf("aws region = %q, want %q", cfg.Embedding.AWSRegion, "us-east-1")
	}
	if cfg.Embedding.ModelID != "amazon.titan-embed-text-v1" {
		t.Fatalf("embedding model = %q, want %q", cfg.Embedding.ModelID, "amazon.titan-embed-text-v1")
	}
	if cfg.Gateway.Port != defaultGatewayPort {
		t.Fatalf("gateway port = %d, want %d", cfg.Gateway.Port, defaultGatewayPort)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("WHATSAPP_API_TOKEN", "wa-token")
	t.Setenv("WHATSAPP_VERIFY_TOKEN", "verify-secret")
	t.Setenv("PHONE_NUMBER_ID", "104")
	t.Setenv("RETRIEVAL_TOP_K", "3")
	t.Setenv("HISTORY_LIMIT", "10")
	t.Setenv("GATEWAY_PORT", "9090")
	t.Setenv("TELEGRAM_ALLOW_FROM", " 42, , 77 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.WhatsApp.APIToken != "wa-token" {
		t.Fatalf("api token = %q, want %q", cfg.WhatsApp.APIToken, "wa-token")
	}
	if cfg.Retrieval.TopK != 3 {
		t.Fatalf("top_k = %d, want 3", cfg.Retrieval.TopK)
	}
	if cfg.Store.HistoryLimit != 10 {
		t.Fatalf("history limit = %d, want 10", cfg.Store.HistoryLimit)
	}
	if cfg.Gateway.Port != 9090 {
		t.Fatalf("gateway port = %d, want 9090", cfg.Gateway.Port)
	}
	if len(cfg.Telegram.AllowFrom) != 2 || cfg.Telegram.AllowFrom[0] != "42" || cfg.Telegram.AllowFrom[1] != "77" {
		t.Fatalf("telegram allow_from = %v, want [42 77]", cfg.Telegram.AllowFrom)
	}
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "top_k not a number", key: "RETRIEVAL_TOP_K", value: "five"},
		{name: "top_k zero", key: "RETRIEVAL_TOP_K", value: "0"},
		{name: "history limit negative", key: "HISTORY_LIMIT", value: "-1"},
		{name: "port out of range", key: "GATEWAY_PORT", value: "70000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func clearEnv(t *testing.T) {
	t.Helper()

	keys := []string{
		"WHATSAPP_API_TOKEN", "WHATSAPP_VERIFY_TOKEN", "PHONE_NUMBER_ID",
		"STORE_BACKEND", "SUPABASE_URL", "SUPABASE_KEY", "SQLITE_PATH",
		"PINECONE_API_KEY", "PINECONE_INDEX_NAME", "PINECONE_INDEX_HOST",
		"AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY", "AWS_REGION", "EMBEDDING_MODEL",
		"OPENROUTER_API_KEY", "OPENROUTER_MODEL_NAME", "OPENROUTER_BASE_URL",
		"RETRIEVAL_TOP_K", "HISTORY_LIMIT",
		"TELEGRAM_BOT_TOKEN", "TELEGRAM_ALLOW_FROM",
		"GATEWAY_HOST", "GATEWAY_PORT",
		"CONCIERGE_LOG_FORMAT", "CONCIERGE_LOG_LEVEL", "CONCIERGE_LOG_ADD_SOURCE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
