package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"magicpic_admin/internal/domain"
)

// Login exchanges credentials for a token and begins the session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	var res domain.LoginResult
	err := c.do(ctx, call{
		op:        "auth.login",
		method:    http.MethodPost,
		path:      "/auth/login",
		body:      map[string]string{"email": email, "password": password},
		anonymous: true,
	}, &res)
	if err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, &ApplicationError{Op: "auth.login", Code: "NO_TOKEN", Message: "Login failed"}
	}

	if err := c.session.Begin(ctx, res.AccessToken, &res.Admin, time.Duration(res.ExpiresIn)*time.Second); err != nil {
		return nil, err
	}
	return &res, nil
}

// Logout tells the upstream and always ends the local session, even when the
// call fails. The upstream error is still returned for logging.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, call{op: "auth.logout", method: http.MethodPost, path: "/auth/logout"}, nil)
	if endErr := c.session.End(ctx); endErr != nil {
		return errors.Join(err, endErr)
	}
	return err
}

// Me re-validates the session and refreshes the stored profile. A rejected
// token ends the session; transport failures leave it in place.
func (c *Client) Me(ctx context.Context) (*domain.Admin, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{op: "auth.me", method: http.MethodGet, path: "/auth/me"}, &raw)
	if err != nil {
		var appErr *ApplicationError
		if errors.As(err, &appErr) {
			_ = c.session.End(ctx)
		}
		return nil, err
	}

	var wrapped struct {
		Admin *domain.Admin `json:"admin"`
	}
	admin := &domain.Admin{}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.Admin != nil {
		admin = wrapped.Admin
	} else if err := json.Unmarshal(raw, admin); err != nil {
		return nil, &TransportError{Op: "auth.me", Status: http.StatusOK, Err: err}
	}

	if err := c.session.UpdateAdmin(ctx, admin); err != nil {
		c.log.Warn("failed to store admin profile", "error", err)
	}
	return admin, nil
}

// SearchUsers returns at most limit users whose name or email matches search.
func (c *Client) SearchUsers(ctx context.Context, search string, limit int) ([]domain.User, error) {
	q := url.Values{}
	q.Set("search", search)
	q.Set("limit", strconv.Itoa(limit))

	var res struct {
		Users []domain.User `json:"users"`
		Items []domain.User `json:"items"`
	}
	if err := c.do(ctx, call{op: "users.search", method: http.MethodGet, path: "/users", query: q}, &res); err != nil {
		return nil, err
	}
	users := res.Users
	if users == nil {
		users = res.Items
	}
	if len(users) > limit && limit > 0 {
		users = users[:limit]
	}
	return users, nil
}

// GetUser reads one user. The detail endpoint wraps it as {"user": ...}
// next to stats the console does not use.
func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var raw json.RawMessage
	path := "/users/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, call{op: "users.get", method: http.MethodGet, path: path}, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		User *domain.User `json:"user"`
	}
	user := &domain.User{}
	if json.Unmarshal(raw, &wrapped) == nil && wrapped.User != nil {
		user = wrapped.User
	} else if err := json.Unmarshal(raw, user); err != nil {
		return nil, &TransportError{Op: "users.get", Status: http.StatusOK, Err: err}
	}
	if user.ID == 0 {
		return nil, &ApplicationError{Op: "users.get", Status: http.StatusNotFound, Code: "HTTP_404", Message: "User not found"}
	}
	return user, nil
}

// AddCredits submits one grant request. It never retries.
func (c *Client) AddCredits(ctx context.Context, req domain.CreditGrantRequest) (*domain.GrantResult, error) {
	var header http.Header
	if req.IdempotencyKey != "" {
		header = http.Header{"Idempotency-Key": []string{req.IdempotencyKey}}
	}

	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "credits.add",
		method: http.MethodPost,
		path:   "/credits/add",
		body:   req,
		header: header,
	}, &raw)
	if err != nil {
		return nil, err
	}

	res := &domain.GrantResult{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, res); err != nil {
			// the grant went through; an unexpected echo must not turn it into a failure
			c.log.Warn("unexpected credits.add payload", "error", err)
			res = &domain.GrantResult{}
		}
	}
	return res, nil
}

// ListTransactions fetches one page of the ledger.
func (c *Client) ListTransactions(ctx context.Context, tq domain.TransactionQuery) (*domain.TransactionPage, error) {
	q := url.Values{}
	if tq.Page > 0 {
		q.Set("page", strconv.Itoa(tq.Page))
	}
	if tq.Type != "" {
		q.Set("type", string(tq.Type))
	}
	if tq.UserID > 0 {
		q.Set("user_id", strconv.FormatInt(tq.UserID, 10))
	}

	var res struct {
		Transactions []domain.Transaction `json:"transactions"`
		Items        []domain.Transaction `json:"items"`
		Pagination   domain.Pagination    `json:"pagination"`
	}
	if err := c.do(ctx, call{op: "credits.transactions", method: http.MethodGet, path: "/credits/transactions", query: q}, &res); err != nil {
		return nil, err
	}
	page := &domain.TransactionPage{Transactions: res.Transactions, Pagination: res.Pagination}
	if page.Transactions == nil {
		page.Transactions = res.Items
	}
	return page, nil
}

// CreditStats returns the advisory credit counters.
func (c *Client) CreditStats(ctx context.Context) (*domain.CreditStats, error) {
	var res domain.CreditStats
	if err := c.do(ctx, call{op: "credits.stats", method: http.MethodGet, path: "/credits/stats"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// DashboardStats returns the overview counters of the analytics page.
func (c *Client) DashboardStats(ctx context.Context) (*domain.DashboardStats, error) {
	var res domain.DashboardStats
	if err := c.do(ctx, call{op: "analytics.stats", method: http.MethodGet, path: "/analytics/stats"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// RecentActivity returns the latest platform events.
func (c *Client) RecentActivity(ctx context.Context) ([]domain.Activity, error) {
	var res struct {
		Activities []domain.Activity `json:"activities"`
	}
	if err := c.do(ctx, call{op: "analytics.activity", method: http.MethodGet, path: "/analytics/activity"}, &res); err != nil {
		return nil, err
	}
	return res.Activities, nil
}

// Charts returns the series of metric ("users", "creations", "credits")
// over period ("7d", "30d"). Empty arguments leave the upstream defaults.
func (c *Client) Charts(ctx context.Context, metric, period string) (*domain.ChartData, error) {
	q := url.Values{}
	if metric != "" {
		q.Set("metric", metric)
	}
	if period != "" {
		q.Set("range", period)
	}
	var res domain.ChartData
	if err := c.do(ctx, call{op: "analytics.charts", method: http.MethodGet, path: "/analytics/charts", query: q}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Ping checks that the upstream answers at all. Any response below 500 counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: "ping", Err: err}
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return &TransportError{Op: "ping", Status: resp.StatusCode}
	}
	return nil
}
