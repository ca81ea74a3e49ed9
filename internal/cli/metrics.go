package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display triage throughput metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include items ingested and how they were routed, plans created
and decided, worker restarts, and alerts raised.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized (observability may be disabled)")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		if metricsJSON {
			data, err := json.MarshalIndent(metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		// Table format.
		fmt.Printf("Metrics (since %s)\n\n", sinceTime.Format("2006-01-02 15:04 UTC"))
		fmt.Printf("  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Printf("  %-24s %d\n", "Items ingested:", metrics.ItemsIngested)
		fmt.Printf("  %-24s %d\n", "Items archived:", metrics.ItemsArchived)
		fmt.Printf("  %-24s %d\n", "Replies auto-sent:", metrics.AutoSent)
		fmt.Printf("  %-24s %d\n", "Plans created:", metrics.PlansCreated)
		fmt.Printf("  %-24s %d\n", "Plans executed:", metrics.PlansExecuted)
		fmt.Printf("  %-24s %d\n", "Plans rejected:", metrics.PlansRejected)
		fmt.Printf("  %-24s %d\n", "Worker restarts:", metrics.WorkerRestarts)
		fmt.Printf("  %-24s %d\n", "Alerts raised:", metrics.AlertsRaised)

		if len(metrics.ByCategory) > 0 {
			fmt.Println("\n  Items by category:")
			for category, count := range metrics.ByCategory {
				fmt.Printf("    %-20s %d\n", category+":", count)
			}
		}

		if len(metrics.BySource) > 0 {
			fmt.Println("\n  Items by source:")
			for source, count := range metrics.BySource {
				fmt.Printf("    %-20s %d\n", source+":", count)
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Printf("\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Printf("  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "24h",
// "7d", or "30d" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Add(-24 * time.Hour), nil
	}

	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day duration %q", s)
		}
		return now.AddDate(0, 0, -days), nil
	}

	if strings.HasSuffix(s, "h") {
		hours, err := strconv.Atoi(strings.TrimSuffix(s, "h"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid hour duration %q", s)
		}
		return now.Add(-time.Duration(hours) * time.Hour), nil
	}

	return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 24h, 7d, 30d)", s)
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "24h", "Time window for metrics (e.g. 24h, 7d, 30d)")
	rootCmd.AddCommand(metricsCmd)
}
