package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/parley/internal/cli"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes Parley as an MCP server so AI agents can message bots, inspect
conversations, search and feed the knowledge base and validate flows.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP on server.mcp_addr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		transport, _ := cmd.Flags().GetString("transport")
		switch transport {
		case "stdio":
			return cli.RunMCPStdio(ctx, cfg)
		case "sse":
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.MCPAddr = addr
			}
			return cli.RunMCPSSE(ctx, cfg)
		default:
			return fmt.Errorf("unknown transport %q (use stdio or sse)", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().String("addr", "", "Address for the sse transport (overrides server.mcp_addr)")
}
