package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var runOnce bool
var runInterval int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the triage engine",
	Long: `Start the engine: one polling worker per enabled source, the approval
executor, and the health supervisor. Workers run until interrupted; a
second interrupt forces an immediate exit.

Use --once to perform a single synchronous cycle and print a summary
instead of staying resident. Use --interval to override the configured
source poll intervals for this run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Orch == nil {
			return fmt.Errorf("orchestrator not initialized")
		}

		if runOnce {
			result, err := Orch.RunOnce(context.Background())
			if err != nil {
				return fmt.Errorf("running cycle: %w", err)
			}

			fmt.Println("Triage cycle completed:")
			fmt.Printf("  Items polled:    %d\n", result.ItemsPolled)
			fmt.Printf("  Already seen:    %d\n", result.Skipped)
			fmt.Printf("  Archived:        %d\n", result.Archived)
			fmt.Printf("  Auto-sent:       %d\n", result.AutoSent)
			fmt.Printf("  Plans created:   %d\n", result.PlansCreated)
			fmt.Printf("  Plans held:      %d\n", result.Held)
			fmt.Printf("  Plans executed:  %d\n", result.PlansExecuted)
			fmt.Printf("  Plans rejected:  %d\n", result.PlansRejected)
			fmt.Printf("  Items moved:     %d\n", result.ItemsMoved)

			if len(result.Errors) > 0 {
				fmt.Printf("\nWarnings (%d):\n", len(result.Errors))
				for _, e := range result.Errors {
					fmt.Printf("  - %s\n", e)
				}
			}

			return nil
		}

		if runInterval > 0 {
			Orch.SetPollInterval(time.Duration(runInterval) * time.Second)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		// First signal drains the workers, second one force-quits.
		go func() {
			<-sigCh
			fmt.Fprintln(os.Stderr, "\nShutting down, waiting for workers (interrupt again to force quit)")
			cancel()
			<-sigCh
			os.Exit(1)
		}()

		fmt.Printf("Triage engine running (base: %s). Press Ctrl-C to stop.\n", BasePath)

		if err := Orch.Run(ctx); err != nil {
			return fmt.Errorf("running engine: %w", err)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
	runCmd.Flags().IntVar(&runInterval, "interval", 0, "Override source poll intervals in seconds")
	rootCmd.AddCommand(runCmd)
}
