package credits

import (
	"fmt"
	"sort"

	"magicpic_admin/internal/domain"
)

// Continuity warning kinds.
const (
	WarnBalanceMismatch = "balance_mismatch"
	WarnBalanceGap      = "balance_gap"
)

// ContinuityWarning flags a record on a displayed page whose balances do not chain.
type ContinuityWarning struct {
	TransactionID int64  `json:"transaction_id"`
	UserID        int64  `json:"user_id"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

// CheckContinuity checks balance_after == balance_before + amount for every
// record and, per user in chronological order, that each balance_before
// matches the previous balance_after. A page may skip records of a user, so
// callers show the result as warnings only.
func CheckContinuity(txs []domain.Transaction) []ContinuityWarning {
	var warnings []ContinuityWarning
	byUser := make(map[int64][]domain.Transaction)
	var users []int64

	for _, tx := range txs {
		if tx.BalanceBefore+tx.Amount != tx.BalanceAfter {
			warnings = append(warnings, ContinuityWarning{
				TransactionID: tx.ID,
				UserID:        tx.UserID,
				Kind:          WarnBalanceMismatch,
				Message: fmt.Sprintf("balance %d %+d should be %d, recorded %d",
					tx.BalanceBefore, tx.Amount, tx.BalanceBefore+tx.Amount, tx.BalanceAfter),
			})
		}
		if _, seen := byUser[tx.UserID]; !seen {
			users = append(users, tx.UserID)
		}
		byUser[tx.UserID] = append(byUser[tx.UserID], tx)
	}

	for _, uid := range users {
		list := byUser[uid]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].ID < list[j].ID
			}
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		})
		for i := 1; i < len(list); i++ {
			prev, cur := list[i-1], list[i]
			if cur.BalanceBefore != prev.BalanceAfter {
				warnings = append(warnings, ContinuityWarning{
					TransactionID: cur.ID,
					UserID:        uid,
					Kind:          WarnBalanceGap,
					Message: fmt.Sprintf("starts at %d but transaction %d ended at %d",
						cur.BalanceBefore, prev.ID, prev.BalanceAfter),
				})
			}
		}
	}
	return warnings
}
