package commands

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/utkarsh5026/retryme/backoff"
)

// NewDelaysCmd creates the command printing the delay schedule.
func NewDelaysCmd(opts *globalOptions) *cobra.Command {
	var attempts int

	cmd := &cobra.Command{
		Use:   "delays",
		Short: "Print the retry delay schedule",
		Long: `Print, for every retry the configuration allows, the base delay, the
exclusive upper bound jitter can push it to, and one sampled delay.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			bc := cfg.BackoffConfig()
			if !cmd.Flags().Changed("attempts") {
				attempts = bc.MaxRetries
			}
			if attempts < 0 {
				return fmt.Errorf("attempts must be >= 0, got %d", attempts)
			}
			return renderSchedule(cmd, bc, attempts)
		},
	}

	cmd.Flags().IntVarP(&attempts, "attempts", "n", 0, "number of retries to show (default: max retries)")

	return cmd
}

func renderSchedule(cmd *cobra.Command, cfg backoff.Config, attempts int) error {
	out := cmd.OutOrStdout()

	printSectionHeader(out, "RETRY DELAY SCHEDULE",
		fmt.Sprintf("  initial %v, max %v, multiplier %g, jitter %g, max retries %d",
			cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier, cfg.Jitter, cfg.MaxRetries))

	table := tablewriter.NewWriter(out)
	table.Header("Retry", "Base", "Upper Bound", "Sample")

	for attempt := 0; attempt < attempts; attempt++ {
		lo, hi := backoff.DelayBounds(attempt, cfg)
		if err := table.Append(
			strconv.Itoa(attempt+1),
			formatDelay(lo),
			formatDelay(hi),
			formatDelay(backoff.ComputeDelay(attempt, cfg)),
		); err != nil {
			return err
		}
	}

	return table.Render()
}
