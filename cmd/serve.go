package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"concierge/pkg/channel"
	"concierge/pkg/channel/telegram"
	"concierge/pkg/channel/whatsapp"
	"concierge/pkg/config"
	"concierge/pkg/gateway"
	"concierge/pkg/logger"
	"concierge/pkg/pipeline"
	"concierge/pkg/provider/openrouter"
	"concierge/pkg/rag"
	"concierge/pkg/store"
	"concierge/pkg/store/sqlite"
	"concierge/pkg/store/supabase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway",
	Long:  "Runs the WhatsApp webhook gateway with health, readiness, and metrics endpoints, plus the Telegram channel when configured.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		historyStore, err := buildStore(runCtx, cfg, appLogger)
		if err != nil {
			log.Error("Failed to initialize store", "error", err)
			return
		}
		defer historyStore.Close()

		retriever, err := buildRetriever(runCtx, cfg, appLogger)
		if err != nil {
			log.Error("Failed to initialize retriever", "error", err)
			return
		}

		generator, err := openrouter.New(cfg.Generation, appLogger)
		if err != nil {
			log.Error("Failed to initialize generation backend", "error", err)
			return
		}

		pipe, err := pipeline.New(historyStore, retriever, generator, cfg.Store.HistoryLimit, appLogger)
		if err != nil {
			log.Error("Failed to initialize pipeline", "error", err)
			return
		}

		sender, err := whatsapp.NewSender(cfg.WhatsApp, "", appLogger)
		if err != nil {
			log.Error("Failed to initialize WhatsApp sender", "error", err)
			return
		}
		webhook := whatsapp.NewWebhook(cfg.WhatsApp.VerifyToken, sender, pipe.Handler(), appLogger)

		adapters, err := optionalAdapters(cfg, appLogger)
		if err != nil {
			log.Error("Channel configuration invalid", "error", err)
			return
		}

		svc, err := gateway.NewService(cfg.Gateway, webhook, historyStore, pipe.Handler(), adapters, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		log.Info("Gateway started", "store", cfg.Store.Backend, "model", cfg.Generation.Model, "channels", channelNames(adapters))
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func buildStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "", "supabase":
		return supabase.New(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey, cfg.Store.HistoryLimit, log)
	case "sqlite":
		return sqlite.New(ctx, cfg.Store.SQLitePath, cfg.Store.HistoryLimit, log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func buildRetriever(ctx context.Context, cfg *config.Config, log *slog.Logger) (pipeline.Retriever, error) {
	embedder, err := rag.NewBedrockEmbedder(ctx, cfg.Embedding, log)
	if err != nil {
		return nil, fmt.Errorf("configure embedding backend: %w", err)
	}

	index, err := rag.NewPineconeIndex(ctx, cfg.Pinecone, log)
	if err != nil {
		return nil, fmt.Errorf("configure search index: %w", err)
	}

	return rag.NewRetriever(embedder, index, cfg.Retrieval.TopK, log)
}

func optionalAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return nil, nil
	}

	adapter, err := telegram.NewAdapter(cfg.Telegram, log)
	if err != nil {
		return nil, fmt.Errorf("configure telegram channel: %w", err)
	}

	return []channel.Adapter{adapter}, nil
}

func channelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters)+1)
	names = append(names, "whatsapp")
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
