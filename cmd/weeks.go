package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jalad-shrimali/cdr-sociometer/window"
)

func newWeeksCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "weeks <start_date> <end_date>",
		Short: "Show the windows a date range is split into",
		Long: `Print every ISO week touched by the range, grouped into the windows that
would be profiled, followed by the trailing weeks that do not fill a window.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			start, err := window.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("start_date: %w", err)
			}
			end, err := window.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("end_date: %w", err)
			}
			plan, err := window.New(start, end, cfg.Profile.WeeksPerWindow)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, w := range plan.Windows {
				fmt.Fprintf(out, "%s\t%s\n", w.Name(), weekNames(w.Weeks))
			}
			if len(plan.Skipped) > 0 {
				fmt.Fprintf(out, "skipped\t%s\n", weekNames(plan.Skipped))
			}
			return nil
		},
	}
}
