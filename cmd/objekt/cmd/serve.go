package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/objektdb/pkg/api"
)

func newServeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long: `Start the objektdb REST API server. Requests must carry the configured
API key in the X-API-Key header; an empty key disables authentication.

Examples:
  objekt serve
  objekt serve --port 9000 --bind 0.0.0.0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			cfg := a.config
			if cmd.Flags().Changed("port") {
				cfg.Port, _ = cmd.Flags().GetInt("port")
			}
			if cmd.Flags().Changed("bind") {
				cfg.Bind, _ = cmd.Flags().GetString("bind")
			}
			if cmd.Flags().Changed("api-key") {
				cfg.Security.APIKey, _ = cmd.Flags().GetString("api-key")
			}
			if cfg.Security.APIKey == "" {
				a.logger.Warn("no API key configured, authentication is disabled")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.NewServer(a.catalog, api.ServerConfig{
				Bind:   cfg.Bind,
				Port:   cfg.Port,
				APIKey: cfg.Security.APIKey,
			}, a.metrics, a.logger)

			cmd.Printf("Starting objektdb server on %s:%d\n", cfg.Bind, cfg.Port)
			cmd.Printf("Data directory: %s\n", cfg.DataDir)
			return server.Start(ctx)
		},
	}
	c.Flags().IntP("port", "p", 8080, "Port to listen on (overrides config)")
	c.Flags().String("bind", "127.0.0.1", "Address to bind server to (overrides config)")
	c.Flags().String("api-key", "", "API key (overrides config)")
	return c
}
