package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func printCandidates(w io.Writer, cands []domain.Candidate) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tBALANCE")
	for _, c := range cands {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.ID, c.Name, c.Email, c.Balance)
	}
	tw.Flush()
}

func printHistory(w io.Writer, st credits.HistoryState) {
	if st.Error != "" {
		fmt.Fprintln(w, st.Error)
		return
	}
	if st.Empty {
		fmt.Fprintln(w, "No transactions")
		return
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tUSER\tTYPE\tAMOUNT\tBEFORE\tAFTER\tDESCRIPTION")
	for _, tx := range st.Transactions {
		user := tx.UserName
		if user == "" {
			user = fmt.Sprintf("#%d", tx.UserID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%+d\t%d\t%d\t%s\n",
			tx.ID, tx.CreatedAt.Local().Format("2006-01-02 15:04"), user, tx.Type.Label(),
			tx.Amount, tx.BalanceBefore, tx.BalanceAfter, tx.Description)
	}
	tw.Flush()

	p := st.Pagination
	if p.TotalPages > 0 {
		fmt.Fprintf(w, "page %d of %d (%d total)\n", p.Page, p.TotalPages, p.Total)
	}
	for _, warn := range st.Warnings {
		fmt.Fprintf(w, "warning: transaction %d: %s\n", warn.TransactionID, warn.Message)
	}
}

// terminalUI shows grant outcomes and follows navigation by printing the
// target view.
type terminalUI struct {
	out  io.Writer
	open func(path string)
}

func (u *terminalUI) Success(msg string) { fmt.Fprintln(u.out, msg) }
func (u *terminalUI) Error(msg string)   { fmt.Fprintln(u.out, "Error:", msg) }

func (u *terminalUI) Navigate(path string) {
	if u.open != nil {
		u.open(path)
	}
}
