package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dayuer/chatgate/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chatgate configuration status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("chatgate Status")
	fmt.Println()
	fmt.Printf("Config: %s\n", path)
	fmt.Printf("Bot: %s (%s)\n", botLabel(cfg.Bot.Type), cfg.Bot.Model)
	fmt.Printf("Dispatch: %d per session, pool %d\n",
		cfg.Dispatch.ConcurrencyInSession, cfg.Dispatch.HandlerPoolSize)

	if r := cfg.Session.Redis; r != nil && r.URL != "" {
		fmt.Printf("Sessions: redis (%s)\n", r.URL)
	} else {
		fmt.Println("Sessions: in-memory")
	}

	fmt.Println("\nChannels:")
	if t := cfg.Channel.Terminal; t != nil && t.Enabled {
		fmt.Println("  terminal: ✓")
	}
	if w := cfg.Channel.Web; w != nil && w.Enabled {
		fmt.Printf("  web: ✓ (port %d)\n", w.Port)
	}

	return nil
}

func botLabel(typ string) string {
	if typ == "" {
		return "openai"
	}
	return typ
}
