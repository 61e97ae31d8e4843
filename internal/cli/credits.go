package cli

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsAddCmd)
	creditsCmd.AddCommand(creditsTransactionsCmd)
	creditsCmd.AddCommand(creditsStatsCmd)

	creditsAddCmd.Flags().Int64("user", 0, "Target user ID")
	creditsAddCmd.Flags().String("search", "", "Resolve the target by name or email instead of --user")
	creditsAddCmd.Flags().Int64P("amount", "a", 0, "Credits to add")
	creditsAddCmd.Flags().StringP("description", "d", "", "Reason shown in the ledger")
	creditsAddCmd.Flags().String("reference", "", "Optional external reference")
	creditsAddCmd.Flags().Bool("no-notify", false, "Do not notify the user")
	creditsAddCmd.Flags().String("idempotency-key", "", "Reuse the key of an earlier attempt whose outcome is unknown")

	creditsTransactionsCmd.Flags().Int("page", 1, "Page number")
	creditsTransactionsCmd.Flags().String("type", "", "Filter by transaction type")
	creditsTransactionsCmd.Flags().Int64("user", 0, "Filter by user ID")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Grant credits and browse the ledger",
}

var creditsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Grant credits to a user",
	Long: `Grant credits to a user. The request carries an idempotency key; if the
outcome is unknown (e.g. a timeout), rerun with --idempotency-key to retry
without risking a duplicate grant.`,
	RunE: runCreditsAdd,
}

func runCreditsAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if err := requireSession(ctx); err != nil {
		return err
	}

	userID, _ := cmd.Flags().GetInt64("user")
	query, _ := cmd.Flags().GetString("search")
	amount, _ := cmd.Flags().GetInt64("amount")
	desc, _ := cmd.Flags().GetString("description")
	ref, _ := cmd.Flags().GetString("reference")
	noNotify, _ := cmd.Flags().GetBool("no-notify")
	key, _ := cmd.Flags().GetString("idempotency-key")

	var target *domain.Candidate
	switch {
	case userID != 0:
		c, err := credits.ResolveTarget(ctx, app.api, userID)
		var verr *credits.ValidationError
		if errors.As(err, &verr) {
			printFields(cmd, verr)
			return errors.New("grant not sent")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(app.out, "Target: %s <%s> (balance %d)\n", c.Name, c.Email, c.Balance)
		target = &c
	case query != "":
		c, err := resolveTarget(cmd, query)
		if err != nil {
			return err
		}
		target = &c
	}

	ui := &terminalUI{out: app.out}
	ui.open = func(path string) {
		fmt.Fprintf(app.out, "\n%s\n", path)
		viewer := credits.NewHistoryViewer(app.api)
		viewer.Open(ctx, credits.HistoryKey{Page: 1})
		viewer.Wait()
		printHistory(app.out, viewer.State())
	}

	form := credits.NewGrantForm(app.api, ui, ui)
	form.Fill(credits.GrantValues{
		Target:      target,
		Amount:      amount,
		Description: desc,
		ReferenceID: ref,
		NotifyUser:  !noNotify,
	})
	form.ResumeKey(key)

	_, err := form.Submit(ctx)
	var verr *credits.ValidationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		printFields(cmd, verr)
		return errors.New("grant not sent")
	default:
		fmt.Fprintf(cmd.ErrOrStderr(), "To retry this exact grant: --idempotency-key %s\n", form.IdempotencyKey())
		return errors.New("grant failed")
	}
}

func printFields(cmd *cobra.Command, verr *credits.ValidationError) {
	fields := make([]string, 0, len(verr.Fields))
	for f := range verr.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", f, verr.Fields[f])
	}
}

func resolveTarget(cmd *cobra.Command, query string) (domain.Candidate, error) {
	if _, ok := credits.Searchable(query); !ok {
		return domain.Candidate{}, fmt.Errorf("--search must be longer than %d characters", credits.MinQueryLen)
	}
	lookup := credits.NewLookup(app.api)
	cands := slices.Collect(lookup.Query(cmd.Context(), query))
	switch len(cands) {
	case 0:
		return domain.Candidate{}, fmt.Errorf("no users match %q", query)
	case 1:
		lookup.Select(cands[0])
		c, _ := lookup.Target()
		fmt.Fprintf(app.out, "Target: %s <%s> (balance %d)\n", c.Name, c.Email, c.Balance)
		return c, nil
	}
	printCandidates(app.out, cands)
	return domain.Candidate{}, fmt.Errorf("%d users match %q: refine the search or pass --user", len(cands), query)
}

var creditsTransactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List ledger transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := requireSession(ctx); err != nil {
			return err
		}
		page, _ := cmd.Flags().GetInt("page")
		typ, _ := cmd.Flags().GetString("type")
		userID, _ := cmd.Flags().GetInt64("user")

		txType, err := domain.ParseTransactionType(typ)
		if err != nil {
			return err
		}

		viewer := credits.NewHistoryViewer(app.api)
		viewer.Open(ctx, credits.HistoryKey{Page: page, Type: txType, UserID: userID})
		viewer.Wait()
		printHistory(app.out, viewer.State())
		return nil
	},
}

var creditsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show credit counters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireSession(cmd.Context()); err != nil {
			return err
		}
		s, err := app.api.CreditStats(cmd.Context())
		if err != nil {
			return err
		}
		tw := newTable(app.out)
		fmt.Fprintf(tw, "Total in system\t%d\n", s.TotalInSystem)
		fmt.Fprintf(tw, "Spent today\t%d\n", s.SpentToday)
		fmt.Fprintf(tw, "Spent this week\t%d\n", s.SpentThisWeek)
		fmt.Fprintf(tw, "Average per user\t%.1f\n", s.AveragePerUser)
		if s.GrantedToday != 0 {
			fmt.Fprintf(tw, "Granted today\t%d\n", s.GrantedToday)
		}
		return tw.Flush()
	},
}
