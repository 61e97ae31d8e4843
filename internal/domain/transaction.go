package domain

import (
	"fmt"
	"strings"
	"time"
)

// TransactionType is the business reason recorded on a ledger row.
type TransactionType string

const (
	TxSignupBonus     TransactionType = "signup_bonus"
	TxAdWatch         TransactionType = "ad_watch"
	TxPurchase        TransactionType = "purchase"
	TxCreationCost    TransactionType = "creation_cost"
	TxReferralBonus   TransactionType = "referral_bonus"
	TxBattleWin       TransactionType = "battle_win"
	TxAdminAdjustment TransactionType = "admin_adjustment"
	TxRefund          TransactionType = "refund"
)

// TransactionTypes lists every type in the order the filter menu shows them.
var TransactionTypes = []TransactionType{
	TxSignupBonus,
	TxAdWatch,
	TxPurchase,
	TxCreationCost,
	TxReferralBonus,
	TxBattleWin,
	TxAdminAdjustment,
	TxRefund,
}

// Valid reports whether t is one of the known types.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Label renders the type for humans ("signup bonus").
func (t TransactionType) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// ParseTransactionType accepts the empty string as "all types".
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.TrimSpace(strings.ToLower(s)))
	if t == "" || t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// Transaction is an immutable ledger row owned by the upstream store.
type Transaction struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	UserName      string          `json:"user_name,omitempty"`
	UserEmail     string          `json:"user_email,omitempty"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	Description   string          `json:"description"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Pagination mirrors the upstream pagination block.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// TransactionPage is one page of the ledger as the upstream returns it.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

// TransactionQuery selects a page of the ledger. Zero values mean "no filter".
type TransactionQuery struct {
	Page   int             `json:"page"`
	Type   TransactionType `json:"type,omitempty"`
	UserID int64           `json:"user_id,omitempty"`
}
