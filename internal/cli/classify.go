package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var classifyFrom string
var classifySubject string
var classifyBody string

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Preview the classifier's verdict for a message",
	Long: `Classify a message without touching the vault: score its priority, risk,
and category, and show whether a reply would be sanctioned to go out
unattended.

Pass --body - to read the body from stdin, e.g.

  cat message.txt | cte classify --from a@example.com --subject "Invoice" --body -`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Classifier == nil {
			return fmt.Errorf("classifier not initialized")
		}

		body := classifyBody
		if body == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("reading body from stdin: %w", err)
			}
			body = string(data)
		}

		if strings.TrimSpace(classifySubject) == "" && strings.TrimSpace(body) == "" {
			return fmt.Errorf("nothing to classify: provide --subject or --body")
		}

		cls := Classifier.Classify(classifyFrom, classifySubject, body, nil)

		fmt.Printf("Priority:     %s\n", cls.PriorityLabel)
		fmt.Printf("Category:     %s\n", cls.Category)
		fmt.Printf("Risk:         %s (score %d)\n", cls.RiskLevel, cls.RiskScore)
		if len(cls.RiskFactors) > 0 {
			fmt.Printf("Risk factors: %s\n", strings.Join(cls.RiskFactors, ", "))
		}
		if len(cls.BusinessTerms) > 0 {
			fmt.Printf("Business:     %s\n", strings.Join(cls.BusinessTerms, ", "))
		}
		fmt.Printf("Needs reply:  %v\n", cls.NeedsReply)
		fmt.Printf("Auto-approve: %v\n", cls.AutoApprove)
		fmt.Printf("Confidence:   %.2f\n", cls.Confidence)
		fmt.Printf("Reason:       %s\n", cls.Reason)

		if len(cls.ActionItems) > 0 {
			fmt.Println("\nAction items:")
			for _, item := range cls.ActionItems {
				fmt.Printf("  - %s\n", item)
			}
		}
		if cls.SuggestedReply != "" {
			fmt.Println("\nSuggested reply:")
			for _, line := range strings.Split(strings.TrimRight(cls.SuggestedReply, "\n"), "\n") {
				fmt.Printf("  %s\n", line)
			}
		}
		return nil
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyFrom, "from", "", "Sender address or handle")
	classifyCmd.Flags().StringVar(&classifySubject, "subject", "", "Message subject")
	classifyCmd.Flags().StringVar(&classifyBody, "body", "", "Message body, or - to read stdin")
	rootCmd.AddCommand(classifyCmd)
}
