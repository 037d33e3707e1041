package cmd

import (
	"context"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joescharf/rounds/internal/daemon"
	mcpserver "github.com/joescharf/rounds/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server for Claude Code integration",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an MCP client query review rounds, refresh their status and
record decisions. Configure with:

  {
    "mcpServers": {
      "rounds": { "command": "rounds", "args": ["mcp"] }
    }
  }

Available tools: rounds_list_rounds, rounds_round_status,
rounds_refresh_round, rounds_record_decision, rounds_add_assignment`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		c, err := getCatalog()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), daemon.ShutdownSignals()...)
		defer stop()

		slog.Debug("mcp server starting on stdio")
		return mcpserver.NewServer(s, c).ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
