package main

import (
	"fmt"
	"os"

	app "github.com/valter-silva-au/comms-triage/internal"
	"github.com/valter-silva-au/comms-triage/internal/cli"
)

// Set by goreleaser ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	application, err := app.NewApp(app.ResolveBasePath())
	if err != nil {
		return fmt.Errorf("initializing cte: %w", err)
	}
	defer func() { _ = application.Close() }()

	return cli.Execute()
}
