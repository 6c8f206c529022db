package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stampd-network/stampd/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().Int("ttl", 0, "Redemption session TTL in seconds (overrides config, clamped to 30-60)")
	serveCmd.Flags().Bool("seed-demo", false, "Seed a demo store, card, and reward at boot")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the stampd daemon",
	Long: `Run the stampd daemon in the foreground.

Configuration is read from ~/.stampd/config.toml (or $STAMPD_HOME);
flags override the file. Stop with Ctrl-C for a graceful shutdown.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.LoadConfig()
	if err != nil {
		return err
	}

	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.API.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if ttl, _ := cmd.Flags().GetInt("ttl"); ttl != 0 {
		cfg.Redemption.TTLSeconds = ttl
		if cfg.Redemption.TTLSeconds < 30 {
			cfg.Redemption.TTLSeconds = 30
		}
		if cfg.Redemption.TTLSeconds > 60 {
			cfg.Redemption.TTLSeconds = 60
		}
	}
	if seed, _ := cmd.Flags().GetBool("seed-demo"); seed {
		cfg.Demo.Seed = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return daemon.Run(ctx, cfg)
}
