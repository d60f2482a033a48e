package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/firestation-attendance/internal/jobs"
)

func sweepCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one auto-end sweep and print the closed session ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _ := app.attendanceService()
			closed := jobs.SweepOnce(cmd.Context(), svc, timeout, app.logger)
			fmt.Printf("Closed %d sessions\n", len(closed))
			for _, id := range closed {
				fmt.Printf("- %d\n", id)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Maximum time for the sweep")
	return cmd
}
