package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-devicesim/internal/history"
	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/database"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent simulator runs",
		Long: `List runs recorded in the run history database (database.enabled).
The --profile flag filters by profile when given explicitly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			db, err := openHistory(cmd.Context(), cfg.Database)
			if errors.Is(err, database.ErrDisabled) {
				return errors.New("run history is disabled; set database.enabled in the config file")
			}
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck // Read-only command

			filter := history.Filter{Status: history.Status(status), Limit: limit}
			if cmd.Flags().Changed("profile") {
				filter.Profile = cfg.Simulation.Profile
			}

			runs, err := history.NewSQLiteRepository(db.DB).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tPROFILE\tBROKER\tDEVICES\tSTATUS\tTICKS\tOK\tFAILED\tNOT_CONNECTED\tCONNECTS")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%d\t%d\t%d\t%d\t%d/%d\n",
					r.ID,
					r.StartedAt.Local().Format(time.DateTime),
					formatDuration(r),
					r.Profile,
					r.Broker,
					r.Devices,
					r.Status,
					r.Stats.Ticks,
					r.Stats.Succeeded,
					r.Stats.Failed,
					r.Stats.NotConnected,
					r.Stats.ConnectAttempts-r.Stats.ConnectFailures,
					r.Stats.ConnectAttempts,
				)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status: running, completed, failed")

	return cmd
}

func formatDuration(r history.Run) string {
	if r.Status == history.StatusRunning {
		return "-"
	}
	return r.Duration().Round(time.Second).String()
}
