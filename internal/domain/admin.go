package domain

import "time"

// AdminRole is the upstream role of an admin account.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
	RoleModerator  AdminRole = "moderator"
)

// Admin is the profile returned by login and /auth/me.
type Admin struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	AvatarURL   *string    `json:"avatar_url"`
	Role        AdminRole  `json:"role"`
	Permissions []string   `json:"permissions"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login"`
}

// Can reports whether the admin holds permission. Super admins hold every permission.
func (a *Admin) Can(permission string) bool {
	if a == nil {
		return false
	}
	if a.Role == RoleSuperAdmin {
		return true
	}
	for _, p := range a.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// LoginResult is the payload of a successful POST /auth/login.
type LoginResult struct {
	Admin       Admin  `json:"admin"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// DashboardStats is the overview of GET /analytics/stats.
type DashboardStats struct {
	Users struct {
		Total    int64   `json:"total"`
		NewToday int64   `json:"new_today"`
		Growth   float64 `json:"growth"`
	} `json:"users"`
	Creations struct {
		Total  int64   `json:"total"`
		Today  int64   `json:"today"`
		Growth float64 `json:"growth"`
	} `json:"creations"`
	Revenue struct {
		Total     int64   `json:"total"`
		ThisMonth int64   `json:"this_month"`
		Growth    float64 `json:"growth"`
	} `json:"revenue"`
	Activity struct {
		ActiveUsers int64  `json:"active_users"`
		AvgSession  string `json:"avg_session"`
	} `json:"activity"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	User        string `json:"user"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"` // as sent; the upstream omits the zone
}

// ChartData is a labelled series set of GET /analytics/charts.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}
