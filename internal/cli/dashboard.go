package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.AddCommand(dashboardActivityCmd)
	dashboardCmd.AddCommand(dashboardChartsCmd)

	dashboardChartsCmd.Flags().String("metric", "users", "Series to show: users, creations or credits")
	dashboardChartsCmd.Flags().String("period", "30d", "Time range, e.g. 7d or 30d")
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show platform counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		s, err := app.api.DashboardStats(cmd.Context())
		if err != nil {
			return err
		}
		tw := newTable(app.out)
		fmt.Fprintf(tw, "Users\t%d\t+%d today\t%+.1f%%\n", s.Users.Total, s.Users.NewToday, s.Users.Growth)
		fmt.Fprintf(tw, "Creations\t%d\t+%d today\t%+.1f%%\n", s.Creations.Total, s.Creations.Today, s.Creations.Growth)
		fmt.Fprintf(tw, "Revenue\t%d\t%d this month\t%+.1f%%\n", s.Revenue.Total, s.Revenue.ThisMonth, s.Revenue.Growth)
		fmt.Fprintf(tw, "Active users\t%d\tavg session %s\t\n", s.Activity.ActiveUsers, s.Activity.AvgSession)
		return tw.Flush()
	},
}

var dashboardActivityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show recent platform activity",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		acts, err := app.api.RecentActivity(cmd.Context())
		if err != nil {
			return err
		}
		if len(acts) == 0 {
			fmt.Fprintln(app.out, "No recent activity")
			return nil
		}
		tw := newTable(app.out)
		fmt.Fprintln(tw, "TIME\tTYPE\tUSER\tDESCRIPTION")
		for _, a := range acts {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Timestamp, strings.ReplaceAll(a.Type, "_", " "), a.User, a.Description)
		}
		return tw.Flush()
	},
}

var dashboardChartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Show one chart series as a table",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		metric, _ := cmd.Flags().GetString("metric")
		period, _ := cmd.Flags().GetString("period")
		data, err := app.api.Charts(cmd.Context(), metric, period)
		if err != nil {
			return err
		}

		tw := newTable(app.out)
		header := []string{"SERIES"}
		header = append(header, data.Labels...)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, ds := range data.Datasets {
			row := []string{ds.Label}
			for _, v := range ds.Data {
				row = append(row, fmt.Sprintf("%g", v))
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	},
}
