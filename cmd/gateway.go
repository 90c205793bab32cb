package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dayuer/chatgate/internal/bot"
	"github.com/dayuer/chatgate/internal/bridge"
	"github.com/dayuer/chatgate/internal/channel"
	"github.com/dayuer/chatgate/internal/channel/terminal"
	"github.com/dayuer/chatgate/internal/channel/web"
	"github.com/dayuer/chatgate/internal/config"
	"github.com/dayuer/chatgate/internal/session"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the chatgate gateway (channels + bot)",
	RunE:  runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := makeSessionStore(&cfg)

	b, err := bot.New(cfg.Bot, store)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}
	br := bridge.New(b, nil)

	var chans []channel.Channel
	if t := cfg.Channel.Terminal; t != nil && t.Enabled {
		chans = append(chans, terminal.New(&cfg, br, store))
	}
	if w := cfg.Channel.Web; w != nil && w.Enabled {
		chans = append(chans, web.New(&cfg, br, store))
	}
	if len(chans) == 0 {
		return fmt.Errorf("no channels enabled; set channel.terminal.enabled or channel.web.enabled")
	}
	for _, c := range chans {
		log.Printf("[Gateway] channel enabled: %s", c.Name())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range chans {
		c := c
		g.Go(func() error { return c.Start(ctx) })
	}

	err = g.Wait()

	for _, c := range chans {
		if stopErr := c.Stop(); stopErr != nil {
			log.Printf("[Gateway] stopping %s: %v", c.Name(), stopErr)
		}
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		closer.Close()
	}
	fmt.Println("\nShutting down...")
	return err
}

// makeSessionStore prefers Redis when configured and falls back to the
// in-memory store if the connection fails.
func makeSessionStore(cfg *config.Config) session.Store {
	if r := cfg.Session.Redis; r != nil && r.URL != "" {
		store, err := session.NewRedisStore(session.RedisConfig{
			URL:      r.URL,
			Password: r.Password,
			DB:       r.DB,
		}, cfg.Session.ExpiresSeconds, cfg.Session.MaxTurns)
		if err == nil {
			return store
		}
		log.Printf("[Gateway] Redis unavailable, using in-memory sessions: %v", err)
	}
	return session.NewMemoryStore(cfg.Session.ExpiresSeconds, cfg.Session.MaxTurns)
}
