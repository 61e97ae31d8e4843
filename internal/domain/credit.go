package domain

// CreditGrantRequest is an admin-initiated credit grant. IdempotencyKey travels
// as a request header so the body keeps the upstream shape.
type CreditGrantRequest struct {
	UserID         int64  `json:"user_id"`
	Amount         int64  `json:"amount"`
	Description    string `json:"description"`
	ReferenceID    string `json:"reference_id,omitempty"`
	NotifyUser     bool   `json:"notify_user"`
	IdempotencyKey string `json:"-"`
}

// GrantResult is whatever the upstream echoes back for an accepted grant.
// Every field is optional; the history view re-fetches authoritative data.
type GrantResult struct {
	Transaction *Transaction `json:"transaction,omitempty"`
	NewBalance  *int64       `json:"new_balance,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// CreditStats holds the advisory counters of GET /credits/stats.
type CreditStats struct {
	TotalInSystem  int64   `json:"total_in_system"`
	SpentToday     int64   `json:"spent_today"`
	SpentThisWeek  int64   `json:"spent_this_week"`
	AveragePerUser float64 `json:"average_per_user"`
	GrantedToday   int64   `json:"granted_today,omitempty"`
}
