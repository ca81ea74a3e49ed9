package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	ctemcp "github.com/valter-silva-au/comms-triage/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the cte MCP server on stdio",
	Long: `Start the cte MCP (Model Context Protocol) server on stdio transport.

The server exposes the triage engine as MCP tools that AI assistants can
call: list_items, get_plan, list_plans, approve_plan, reject_plan,
classify_message, get_health, get_metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}

		srv := ctemcp.NewServer(Triage, Classifier, Supervisor, MetricsCalc, appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
