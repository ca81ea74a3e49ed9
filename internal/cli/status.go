package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/comms-triage/internal/storage"
	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display queue depths and worker health",
	Long: `Display how many items sit in each vault folder, how many plans await
a decision, and the health supervisor's view of the engine workers.

Worker health is tracked by the running engine process; when no engine
runs in this process the worker section reports that instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}

		queueStates := []models.ItemState{
			models.StatePending,
			models.StateInbox,
			models.StateDone,
		}

		fmt.Println("== QUEUES ==")
		fmt.Printf("  %-14s %s\n", "FOLDER", "ITEMS")
		for _, state := range queueStates {
			items, err := Triage.ListItems(state)
			if err != nil {
				return fmt.Errorf("listing items: %w", err)
			}
			fmt.Printf("  %-14s %d\n", storage.FolderFor(state), len(items))
		}

		fmt.Println()
		fmt.Println("== PLANS ==")
		fmt.Printf("  %-18s %s\n", "STATUS", "COUNT")
		planStatuses := []models.PlanStatus{
			models.PlanPendingApproval,
			models.PlanApproved,
			models.PlanRejected,
		}
		for _, status := range planStatuses {
			plans, err := Triage.ListPlans(status)
			if err != nil {
				return fmt.Errorf("listing plans: %w", err)
			}
			fmt.Printf("  %-18s %d\n", status, len(plans))
		}

		fmt.Println()
		printWorkerReport()
		return nil
	},
}

// printWorkerReport renders the supervisor's snapshot as a table.
func printWorkerReport() {
	if Supervisor == nil {
		fmt.Println("== WORKERS ==")
		fmt.Println("  Health supervisor not available.")
		return
	}

	report := Supervisor.Report()
	fmt.Printf("== WORKERS (%d) ==\n", len(report.Workers))
	if len(report.Workers) == 0 {
		fmt.Println("  No workers registered (engine not running in this process).")
		return
	}

	fmt.Printf("  %-12s %-11s %-9s %-9s %s\n", "NAME", "STATUS", "FAILURES", "RESTARTS", "LAST HEARTBEAT")
	for _, w := range report.Workers {
		heartbeat := "never"
		if !w.LastHeartbeat.IsZero() {
			heartbeat = w.LastHeartbeat.UTC().Format("2006-01-02 15:04:05")
		}
		restarts := fmt.Sprintf("%d/%d", w.RestartAttempts, w.MaxRestartAttempts)
		fmt.Printf("  %-12s %-11s %-9d %-9s %s\n", w.Name, w.Status, w.ConsecutiveFailures, restarts, heartbeat)
	}
	fmt.Printf("\n%d healthy, %d degraded, %d failed, %d recovering\n",
		report.Healthy, report.Degraded, report.Failed, report.Recovering)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
