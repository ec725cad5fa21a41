package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcoot/arcade-judge/internal/model"
	"github.com/mcoot/arcade-judge/internal/services/settlement"
)

// DueResult lists the period occurrences that settle at an instant
type DueResult struct {
	Now       time.Time         `json:"now"`
	LocalDate string            `json:"localDate"`
	Keys      []model.PeriodKey `json:"keys"`
}

func newDueCmd() *cobra.Command {
	var now string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "Show which periods settle at an instant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := time.Now().UTC()
			if now != "" {
				var err error
				t, err = time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now must be RFC 3339: %w", err)
				}
			}

			local := settlement.LocalTime(t, settings.UTCOffset)
			result := DueResult{Now: t.UTC(), LocalDate: local.Format(time.DateOnly)}
			for _, p := range settlement.DuePeriods(t, settings.UTCOffset, settings.Weekday()) {
				result.Keys = append(result.Keys, model.NewPeriodKey(p, local))
			}

			NewOutput(opts.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "RFC 3339 instant to evaluate (default: now)")

	return cmd
}
