package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"concierge/pkg/config"
	"concierge/pkg/logger"
	"concierge/pkg/pipeline"
	"concierge/pkg/provider/openrouter"
	"concierge/pkg/rag"
	"concierge/pkg/store/sqlite"
)

var (
	chatPhone     string
	chatNamespace string
	chatDBPath    string
)

// chatCmd drives the full pipeline from a terminal against a local
// SQLite store, so the prompt and generation path can be exercised
// without WhatsApp or Supabase.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the concierge locally",
	Long:  "Runs the relay pipeline interactively against a local SQLite store. Retrieval is enabled when the embedding and index backends are configured.",
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

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		dbPath := strings.TrimSpace(chatDBPath)
		if dbPath == "" {
			dbPath = cfg.Store.SQLitePath
		}

		historyStore, err := sqlite.New(ctx, dbPath, cfg.Store.HistoryLimit, appLogger)
		if err != nil {
			fmt.Printf("failed to open local store: %v\n", err)
			return
		}
		defer historyStore.Close()

		if err := historyStore.SeedUser(ctx, chatPhone, chatNamespace); err != nil {
			fmt.Printf("failed to provision chat profile: %v\n", err)
			return
		}

		retriever := chatRetriever(ctx, cfg, appLogger)

		generator, err := openrouter.New(cfg.Generation, appLogger)
		if err != nil {
			fmt.Printf("failed to initialize generation backend: %v\n", err)
			return
		}

		pipe, err := pipeline.New(historyStore, retriever, generator, cfg.Store.HistoryLimit, appLogger)
		if err != nil {
			fmt.Printf("failed to initialize pipeline: %v\n", err)
			return
		}

		runChatLoop(ctx, pipe)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatPhone, "phone", "local", "sender identity to chat as")
	chatCmd.Flags().StringVar(&chatNamespace, "namespace", "default", "retrieval namespace for the chat profile")
	chatCmd.Flags().StringVar(&chatDBPath, "db", "", "path to the SQLite database (defaults to SQLITE_PATH)")
}

// chatRetriever returns the real retriever when both retrieval
// backends are configured, and a no-op otherwise.
func chatRetriever(ctx context.Context, cfg *config.Config, log *slog.Logger) pipeline.Retriever {
	if strings.TrimSpace(cfg.Pinecone.APIKey) == "" {
		fmt.Println("retrieval disabled: PINECONE_API_KEY is not set")
		return rag.Disabled{}
	}

	retriever, err := buildRetriever(ctx, cfg, log)
	if err != nil {
		fmt.Printf("retrieval disabled: %v\n", err)
		return rag.Disabled{}
	}

	return retriever
}

func runChatLoop(ctx context.Context, pipe *pipeline.Pipeline) {
	scanner := bufio.NewScanner(os.Stdin)

	reply := func(_ context.Context, text string) error {
		printConciergeMessage(text)
		return nil
	}

	for {
		fmt.Print("👨🏻 ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if isExitCommand(text) {
			return
		}

		pipe.Handle(ctx, chatPhone, text, reply)
	}
}

func printConciergeMessage(message string) {
	lines := messageLines(message)
	for _, line := range lines {
		fmt.Printf("🛎️ %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func messageLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
