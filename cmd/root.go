package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "concierge",
	Short: "WhatsApp concierge relay",
	Long:  "Concierge relays WhatsApp messages through namespace-scoped retrieval and an LLM, and keeps a bounded conversation history per guest.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
