package cli

import (
	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "cte",
	Short: "Communications Triage Engine - approval-gated inbox automation",
	Long: `Communications Triage Engine (cte) watches inbound email and chat drops,
classifies every message, and routes each one through a file-backed
workflow: archive it, send a reply unattended, or draft a response plan
for human approval.

A message's state is the vault folder it sits in, so any file manager is
a valid control surface. Moving a plan into Approved or Rejected is the
approval decision; the engine picks the move up and acts on it.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("cte %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
