package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mansaraysaheedalpha/neuralaunch-sub005/internal/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <blueprint.md>",
		Short: "Check a blueprint without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open blueprint: %w", err)
			}
			defer f.Close()

			bp, err := parser.NewBlueprintParser().Parse(f)
			if err != nil {
				return fmt.Errorf("blueprint invalid: %w", err)
			}

			total := 0
			for _, wave := range bp.Waves {
				total += len(wave.Tasks)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d wave(s), %d task(s), OK\n",
				bp.ProjectName, len(bp.Waves), total)
			for _, wave := range bp.Waves {
				fmt.Fprintf(cmd.OutOrStdout(), "  wave %d (%s): %d task(s)\n",
					wave.Number, wave.Title, len(wave.Tasks))
			}
			return nil
		},
	}
}
