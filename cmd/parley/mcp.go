package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/parley/internal/cli"
	"github.com/aretw0/parley/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Starts the engine as an MCP server so agents can drive conversations
through the route_turn tool.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")
		if !cmd.Flags().Changed("port") && cfg.Server.MCPPort != 0 {
			port = cfg.Server.MCPPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer func() {
			if err := app.Close(context.Background()); err != nil {
				logger.Error("Engine close failed", "error", err)
			}
		}()

		srv := mcp.NewServer(app.Engine, mcp.WithLogger(logger))

		switch transport {
		case "stdio":
			logger.Info("Starting MCP server (stdio)")
			if err := srv.ServeStdio(); err != nil {
				return fmt.Errorf("MCP server failed: %w", err)
			}
		case "sse":
			if err := srv.ServeSSE(ctx, port); err != nil {
				return fmt.Errorf("MCP server failed: %w", err)
			}
			logger.Info("MCP server stopped")
		default:
			return fmt.Errorf("unknown transport %q, supported: stdio, sse", transport)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().Int("port", 8081, "Port to listen on (only for SSE, overrides server.mcp_port)")
}
