package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/session"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *session.Session) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	sess := session.New(session.NewTokenStore("tok"))
	return New(srv.URL+"/api/admin", sess), sess
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchUsersRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/admin/users" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.RawQuery; got != "limit=10&search=anna" {
			t.Errorf("query = %s", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data": map[string]any{
				"users": []map[string]any{
					{"id": 7, "name": "Anna", "email": "anna@example.com", "credits": 2500},
				},
			},
		})
	})

	users, err := c.SearchUsers(context.Background(), "anna", 10)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != 7 || users[0].Credits != 2500 {
		t.Fatalf("users = %+v", users)
	}
}

func TestSearchUsersItemsShape(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data": map[string]any{
				"items": []map[string]any{{"id": 1}, {"id": 2}, {"id": 3}},
			},
		})
	})

	users, err := c.SearchUsers(context.Background(), "anna", 2)
	if err != nil {
		t.Fatalf("SearchUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected result capped at limit, got %d", len(users))
	}
}

func TestAddCreditsRequest(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodPost || r.URL.Path != "/api/admin/credits/add" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "key-1" {
			t.Errorf("Idempotency-Key = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["user_id"] != float64(7) || body["amount"] != float64(500) || body["description"] != "bonus" || body["notify_user"] != true {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["IdempotencyKey"]; ok {
			t.Error("idempotency key leaked into body")
		}
		writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{"new_balance": 3000}})
	})

	res, err := c.AddCredits(context.Background(), domain.CreditGrantRequest{
		UserID: 7, Amount: 500, Description: "bonus", NotifyUser: true, IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("AddCredits: %v", err)
	}
	if res.NewBalance == nil || *res.NewBalance != 3000 {
		t.Fatalf("result = %+v", res)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestAddCreditsApplicationError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{
			"success": false,
			"error":   map[string]any{"code": "RESERVE", "message": "insufficient balance reserve"},
		})
	})

	_, err := c.AddCredits(context.Background(), domain.CreditGrantRequest{UserID: 7, Amount: 500, Description: "bonus"})
	var appErr *ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("err = %v, want ApplicationError", err)
	}
	if got := UserMessage(err, "Failed to add credits"); got != "insufficient balance reserve" {
		t.Fatalf("UserMessage = %q", got)
	}
	if !IsCode(err, "RESERVE") {
		t.Fatal("IsCode should match")
	}
}

func TestAddCreditsEmptySuccessBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if _, err := c.AddCredits(context.Background(), domain.CreditGrantRequest{UserID: 1, Amount: 1, Description: "x"}); err != nil {
		t.Fatalf("empty 2xx should count as success: %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantApp  bool
		wantCode string
		wantMsg  string
	}{
		{"structured 400", 400, `{"success":false,"error":{"code":"USER_NOT_FOUND","message":"User not found"}}`, true, "USER_NOT_FOUND", "User not found"},
		{"fastapi detail", 404, `{"detail":"User not found"}`, true, "HTTP_404", "User not found"},
		{"fastapi validation", 422, `{"detail":[{"msg":"field required"},{"msg":"value is not a valid integer"}]}`, true, "HTTP_422", "field required; value is not a valid integer"},
		{"bare 500", 500, `Internal Server Error`, false, "", ""},
		{"json without error", 502, `{"status":"down"}`, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.CreditStats(context.Background())
			var appErr *ApplicationError
			var trErr *TransportError
			if tt.wantApp {
				if !errors.As(err, &appErr) {
					t.Fatalf("err = %v, want ApplicationError", err)
				}
				if appErr.Code != tt.wantCode || appErr.Message != tt.wantMsg {
					t.Fatalf("appErr = %+v", appErr)
				}
				return
			}
			if !errors.As(err, &trErr) {
				t.Fatalf("err = %v, want TransportError", err)
			}
			if trErr.Status != tt.status {
				t.Fatalf("status = %d, want %d", trErr.Status, tt.status)
			}
			if got := UserMessage(err, "generic"); got != "generic" {
				t.Fatalf("UserMessage = %q, want fallback", got)
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := New(url, session.New(session.NewTokenStore("tok")))
	_, err := c.CreditStats(context.Background())
	var trErr *TransportError
	if !errors.As(err, &trErr) || trErr.Status != 0 {
		t.Fatalf("err = %v, want TransportError without status", err)
	}
}

func TestUnauthorizedExpiresSession(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"detail": "Not authenticated"})
	})
	var expired int
	sess.OnExpired(func(string) { expired++ })

	_, err := c.ListTransactions(context.Background(), domain.TransactionQuery{Page: 1})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
	if _, ok := sess.Token(context.Background()); ok {
		t.Fatal("session should be cleared after 401")
	}
	if expired != 1 {
		t.Fatalf("OnExpired fired %d times", expired)
	}
}

func TestListTransactionsRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.RawQuery; got != "page=2&type=purchase&user_id=7" {
			t.Errorf("query = %s", got)
		}
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data": map[string]any{
				"transactions": []map[string]any{
					{"id": 11, "user_id": 7, "type": "purchase", "amount": 100, "balance_before": 0, "balance_after": 100, "created_at": "2026-01-02T10:00:00Z"},
				},
				"pagination": map[string]any{"page": 2, "limit": 20, "total": 21, "total_pages": 2},
			},
		})
	})

	page, err := c.ListTransactions(context.Background(), domain.TransactionQuery{Page: 2, Type: domain.TxPurchase, UserID: 7})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(page.Transactions) != 1 || page.Transactions[0].Type != domain.TxPurchase {
		t.Fatalf("page = %+v", page)
	}
	if page.Pagination.TotalPages != 2 {
		t.Fatalf("pagination = %+v", page.Pagination)
	}
}

func TestListTransactionsOmitsEmptyFilters(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.RawQuery != "page=1" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{"transactions": []any{}}})
	})

	page, err := c.ListTransactions(context.Background(), domain.TransactionQuery{Page: 1})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(page.Transactions) != 0 {
		t.Fatalf("expected empty page, got %+v", page.Transactions)
	}
}

func TestLogin(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login must not send a bearer token")
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			writeJSON(w, 200, map[string]any{
				"success": false,
				"error":   map[string]any{"code": "INVALID_CREDENTIALS", "message": "Invalid email or password"},
			})
			return
		}
		writeJSON(w, 200, map[string]any{
			"success": true,
			"data": map[string]any{
				"admin":        map[string]any{"id": 1, "email": body["email"], "role": "admin", "permissions": []string{"users.view"}},
				"access_token": "new-token",
				"token_type":   "bearer",
				"expires_in":   1800,
			},
		})
	})
	ctx := context.Background()
	_ = sess.End(ctx)

	_, err := c.Login(ctx, "ops@example.com", "wrong")
	if !IsCode(err, "INVALID_CREDENTIALS") {
		t.Fatalf("err = %v, want INVALID_CREDENTIALS", err)
	}
	if _, ok := sess.Token(ctx); ok {
		t.Fatal("failed login must not store a token")
	}

	res, err := c.Login(ctx, "ops@example.com", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Admin.Email != "ops@example.com" {
		t.Fatalf("admin = %+v", res.Admin)
	}
	if tok, ok := sess.Token(ctx); !ok || tok != "new-token" {
		t.Fatalf("Token() = %q, %v", tok, ok)
	}
	admin, err := sess.Admin(ctx)
	if err != nil || !admin.Can("users.view") || admin.Can("credits.add") {
		t.Fatalf("stored admin = %+v, %v", admin, err)
	}
}

func TestLogoutClearsSessionOnFailure(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	err := c.Logout(context.Background())
	if err == nil {
		t.Fatal("expected upstream error to be reported")
	}
	if _, ok := sess.Token(context.Background()); ok {
		t.Fatal("session must be cleared even if logout call fails")
	}
}

func TestMe(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{"id": 5, "name": "Ops", "role": "moderator"}})
	})

	admin, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if admin.ID != 5 || admin.Role != domain.RoleModerator {
		t.Fatalf("admin = %+v", admin)
	}
	stored, err := sess.Admin(context.Background())
	if err != nil || stored.ID != 5 {
		t.Fatalf("stored admin = %+v, %v", stored, err)
	}
}

func TestMeEndsSessionOnRejection(t *testing.T) {
	c, sess := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 403, map[string]any{"detail": "Could not validate credentials"})
	})

	if _, err := c.Me(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := sess.Token(context.Background()); ok {
		t.Fatal("session should be cleared after failed auth check")
	}
}

func TestGetUser(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/users/7":
			writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{
				"user":  map[string]any{"id": 7, "name": "Anna", "email": "anna@example.com", "credits": 2500},
				"stats": map[string]any{"total_creations": 0},
			}})
		default:
			writeJSON(w, 404, map[string]any{"detail": "User not found"})
		}
	})
	ctx := context.Background()

	u, err := c.GetUser(ctx, 7)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if u.ID != 7 || u.Name != "Anna" || u.Credits != 2500 {
		t.Fatalf("user = %+v", u)
	}

	_, err = c.GetUser(ctx, 8)
	var appErr *ApplicationError
	if !errors.As(err, &appErr) || appErr.Code != "HTTP_404" || appErr.Message != "User not found" {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyticsActivityAndCharts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/admin/analytics/activity":
			writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{"activities": []map[string]any{
				{"id": 1, "type": "user_signup", "user": "John Doe", "description": "New user registered", "timestamp": "2026-01-02T10:00:00.123456"},
			}}})
		case "/api/admin/analytics/charts":
			if got := r.URL.RawQuery; got != "metric=credits&range=30d" {
				t.Errorf("query = %s", got)
			}
			writeJSON(w, 200, map[string]any{"success": true, "data": map[string]any{
				"labels":   []string{"Mon", "Tue"},
				"datasets": []map[string]any{{"label": "Credits", "data": []int{100, 200}}},
			}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	acts, err := c.RecentActivity(ctx)
	if err != nil || len(acts) != 1 || acts[0].Type != "user_signup" || acts[0].Timestamp == "" {
		t.Fatalf("activity = %+v, %v", acts, err)
	}

	ch, err := c.Charts(ctx, "credits", "30d")
	if err != nil {
		t.Fatalf("Charts: %v", err)
	}
	if len(ch.Labels) != 2 || len(ch.Datasets) != 1 || ch.Datasets[0].Data[1] != 200 {
		t.Fatalf("chart = %+v", ch)
	}
}
