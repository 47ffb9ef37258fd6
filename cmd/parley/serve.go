package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP API: WhatsApp webhooks, conversations, knowledge ingestion
and search, flow validation, the event stream, health and metrics.
Stops gracefully on SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if cmd.Flags().Changed("watch") {
			cfg.Flows.Watch, _ = cmd.Flags().GetBool("watch")
		}
		withMCP, _ := cmd.Flags().GetBool("mcp")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()
		return cli.RunServe(ctx, cfg, cli.ServeOptions{MCP: withMCP})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides server.addr)")
	serveCmd.Flags().Bool("watch", false, "Reload flow documents when they change")
	serveCmd.Flags().Bool("mcp", false, "Also serve MCP tools over SSE on server.mcp_addr")
}
