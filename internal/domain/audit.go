package domain

import "time"

// AuditLog is a local record of an action taken through the console.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	AdminID   int64                  `db:"admin_id" json:"admin_id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryAuth    = "auth"
	AuditCategoryCredits = "credits"
)

// Audit actions
const (
	AuditActionLogin  = "login"
	AuditActionLogout = "logout"

	AuditActionGrantSubmit  = "admin_grant_submit"
	AuditActionGrantSuccess = "admin_grant_success"
	AuditActionGrantFailure = "admin_grant_failure"
)
