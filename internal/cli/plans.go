package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/comms-triage/pkg/models"
)

var plansStatus string

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "List and decide response plans",
	Long: `List drafted response plans and record approval decisions.

Approving or rejecting a plan is the same file move a human would make in
a file manager: the plan document moves from Plans/ into Approved/ or
Rejected/, and the running engine acts on the move within its next
approval pass.`,
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans, optionally filtered by status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}

		plans, err := Triage.ListPlans(models.PlanStatus(plansStatus))
		if err != nil {
			return fmt.Errorf("listing plans: %w", err)
		}

		if len(plans) == 0 {
			fmt.Println("No plans found.")
			return nil
		}

		fmt.Printf("%-34s %-18s %-28s %s\n", "ID", "STATUS", "TO", "SUBJECT")
		for _, plan := range plans {
			fmt.Printf("%-34s %-18s %-28s %s\n", plan.ID, plan.Status, plan.From, plan.Subject)
		}
		return nil
	},
}

var plansApproveCmd = &cobra.Command{
	Use:   "approve <plan-id>",
	Short: "Approve a plan so its reply is sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}

		plan, err := Triage.ApprovePlan(args[0])
		if err != nil {
			return fmt.Errorf("approving plan: %w", err)
		}

		fmt.Printf("Plan %s approved.\n", plan.ID)
		fmt.Printf("The reply to %s will be sent on the engine's next approval pass.\n", plan.From)
		return nil
	},
}

var plansRejectCmd = &cobra.Command{
	Use:   "reject <plan-id>",
	Short: "Reject a plan so its reply is never sent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Triage == nil {
			return fmt.Errorf("triage manager not initialized")
		}

		plan, err := Triage.RejectPlan(args[0])
		if err != nil {
			return fmt.Errorf("rejecting plan: %w", err)
		}

		fmt.Printf("Plan %s rejected.\n", plan.ID)
		fmt.Println("The original item stays in Needs_Action for manual handling.")
		return nil
	},
}

func init() {
	plansListCmd.Flags().StringVar(&plansStatus, "status", "", "Filter by status (pending_approval, approved, rejected, executed)")
	plansCmd.AddCommand(plansListCmd)
	plansCmd.AddCommand(plansApproveCmd)
	plansCmd.AddCommand(plansRejectCmd)
	rootCmd.AddCommand(plansCmd)
}
