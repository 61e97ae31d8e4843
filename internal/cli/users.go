package cli

import (
	"fmt"
	"slices"

	"magicpic_admin/internal/credits"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersSearchCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Look up platform users",
}

var usersSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search users by name or email",
	Long:  fmt.Sprintf("Search users by name or email. Queries of %d characters or fewer are not sent.", credits.MinQueryLen),
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		if _, ok := credits.Searchable(args[0]); !ok {
			return fmt.Errorf("query must be longer than %d characters", credits.MinQueryLen)
		}

		lookup := credits.NewLookup(app.api)
		cands := slices.Collect(lookup.Query(cmd.Context(), args[0]))
		if len(cands) == 0 {
			fmt.Fprintln(app.out, "No users found")
			return nil
		}
		printCandidates(app.out, cands)
		return nil
	},
}
