// Package cmd wires the CLI commands.
package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neuralaunch",
		Short: "Autonomous app-builder decision core",
		Long: `Neuralaunch executes project blueprints in waves of AI-agent tasks.

It parses a Markdown blueprint into waves, runs each wave's tasks under
retry budgets, analyzes failures and applies recovery strategies, and
gates every wave behind a quality review before the next one starts.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewFailuresCommand())
	cmd.AddCommand(NewServeCommand())

	return cmd
}
