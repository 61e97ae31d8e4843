package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type upstream struct {
	mu     sync.Mutex
	keys   []string
	failOn int // fail the Nth grant (1-based), 0 = never
	users  []map[string]any
}

func (u *upstream) handler() http.Handler {
	ok := func(w http.ResponseWriter, data any) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"code": "INVALID_CREDENTIALS", "message": "Invalid email or password"}})
			return
		}
		ok(w, map[string]any{"admin": map[string]any{"id": 1, "email": body["email"], "name": "Ops", "role": "admin"}, "access_token": "tok-1", "expires_in": 1800})
	})
	mux.HandleFunc("/api/admin/auth/me", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"id": 1, "email": "ops@example.com", "name": "Ops", "role": "admin"})
	})
	mux.HandleFunc("/api/admin/auth/logout", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
	mux.HandleFunc("/api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		users := u.users
		u.mu.Unlock()
		ok(w, map[string]any{"users": users})
	})
	mux.HandleFunc("/api/admin/users/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
		u.mu.Lock()
		defer u.mu.Unlock()
		for _, user := range u.users {
			if fmt.Sprint(user["id"]) == id {
				ok(w, map[string]any{"user": user})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"User not found"}`))
	})
	mux.HandleFunc("/api/admin/credits/add", func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.keys = append(u.keys, r.Header.Get("Idempotency-Key"))
		fail := u.failOn == len(u.keys)
		u.mu.Unlock()
		if fail {
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": map[string]string{"message": "ledger busy"}})
			return
		}
		ok(w, map[string]any{"new_balance": 3000})
	})
	mux.HandleFunc("/api/admin/credits/transactions", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{
			"transactions": []map[string]any{{"id": 11, "user_id": 7, "user_name": "Anna", "type": "admin_adjustment", "amount": 500, "balance_before": 2500, "balance_after": 3000, "description": "goodwill", "created_at": "2026-01-02T10:00:00Z"}},
			"pagination":   map[string]any{"page": 1, "limit": 20, "total": 1, "total_pages": 1},
		})
	})
	mux.HandleFunc("/api/admin/credits/stats", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"total_in_system": 100000, "spent_today": 20, "spent_this_week": 140, "average_per_user": 12.5})
	})
	mux.HandleFunc("/api/admin/analytics/stats", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"users": map[string]any{"total": 5, "new_today": 1}})
	})
	mux.HandleFunc("/api/admin/analytics/activity", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"activities": []map[string]any{{"id": 1, "type": "credit_purchase", "user": "Jane Smith", "description": "Purchased 100 credits", "timestamp": "2026-01-02T10:00:00"}}})
	})
	mux.HandleFunc("/api/admin/analytics/charts", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		ok(w, map[string]any{
			"labels":   []string{"Mon", "Tue", "Wed"},
			"datasets": []map[string]any{{"label": q.Get("metric") + " " + q.Get("range"), "data": []float64{100, 200, 150}}},
		})
	})
	return mux
}

func (u *upstream) grantKeys() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.keys...)
}

// resetFlags undoes values left on the package-level commands by earlier runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type harness struct {
	t   *testing.T
	url string
	up  *upstream
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("MAGICPIC_HOME", t.TempDir())
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("ADMIN_API_URL", "")
	t.Setenv("MAGICPIC_PASSWORD", "")

	up := &upstream{users: []map[string]any{{"id": 7, "name": "Anna", "email": "anna@example.com", "credits": 2500}}}
	srv := httptest.NewServer(up.handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, url: srv.URL + "/api/admin", up: up}
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(append([]string{"--api-url", h.url}, args...))
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	if _, _, err := h.run("login", "-e", "ops@example.com", "-p", "secret"); err != nil {
		h.t.Fatalf("login: %v", err)
	}
}

func TestLoginPersistsSession(t *testing.T) {
	h := newHarness(t)

	if _, _, err := h.run("login", "-e", "ops@example.com", "-p", "wrong"); err == nil || !strings.Contains(err.Error(), "Invalid email or password") {
		t.Fatalf("bad login err = %v", err)
	}
	if _, _, err := h.run("whoami"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("whoami before login err = %v", err)
	}

	out, _, err := h.run("login", "-e", "ops@example.com", "-p", "secret")
	if err != nil || !strings.Contains(out, "Logged in as ops@example.com (admin)") {
		t.Fatalf("login = %q, %v", out, err)
	}

	out, _, err = h.run("whoami")
	if err != nil || !strings.Contains(out, "Ops <ops@example.com>") {
		t.Fatalf("whoami = %q, %v", out, err)
	}

	if _, _, err := h.run("logout"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, _, err := h.run("whoami"); err == nil {
		t.Fatal("whoami after logout should fail")
	}
}

func TestUsersSearch(t *testing.T) {
	h := newHarness(t)
	h.login()

	if _, _, err := h.run("users", "search", "ann"); err == nil {
		t.Fatal("short query should be refused")
	}
	out, _, err := h.run("users", "search", "anna")
	if err != nil || !strings.Contains(out, "anna@example.com") || !strings.Contains(out, "2500") {
		t.Fatalf("search = %q, %v", out, err)
	}
}

func TestCreditsAddBySearch(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("credits", "add", "--search", "anna", "-a", "500", "-d", "goodwill")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, want := range []string{"Target: Anna", "Credits added successfully!", "/admin/credits/transactions", "goodwill"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if keys := h.up.grantKeys(); len(keys) != 1 || keys[0] == "" {
		t.Fatalf("grant keys = %v", keys)
	}
}

func TestCreditsAddAmbiguousSearch(t *testing.T) {
	h := newHarness(t)
	h.up.users = append(h.up.users, map[string]any{"id": 8, "name": "Annabel", "email": "annabel@example.com", "credits": 10})
	h.login()

	out, _, err := h.run("credits", "add", "--search", "anna", "-a", "500", "-d", "goodwill")
	if err == nil || !strings.Contains(err.Error(), "2 users match") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(out, "annabel@example.com") {
		t.Fatalf("matches not listed:\n%s", out)
	}
	if len(h.up.grantKeys()) != 0 {
		t.Fatal("nothing should be granted")
	}
}

func TestCreditsAddValidation(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, errOut, err := h.run("credits", "add", "--user", "7", "-a", "0")
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if !strings.Contains(errOut, "amount: Amount must be positive") || !strings.Contains(errOut, "description: Description is required") {
		t.Fatalf("stderr = %q", errOut)
	}
	if len(h.up.grantKeys()) != 0 {
		t.Fatal("invalid form must not reach the upstream")
	}
}

func TestCreditsAddRetryWithKey(t *testing.T) {
	h := newHarness(t)
	h.up.failOn = 1
	h.login()

	out, errOut, err := h.run("credits", "add", "--user", "7", "-a", "500", "-d", "goodwill")
	if err == nil || !strings.Contains(out, "Error: ledger busy") {
		t.Fatalf("first add = %q, %v", out, err)
	}
	key := h.up.grantKeys()[0]
	if !strings.Contains(errOut, "--idempotency-key "+key) {
		t.Fatalf("retry hint missing: %q", errOut)
	}

	if _, _, err := h.run("credits", "add", "--user", "7", "-a", "500", "-d", "goodwill", "--idempotency-key", key); err != nil {
		t.Fatalf("retry: %v", err)
	}
	keys := h.up.grantKeys()
	if len(keys) != 2 || keys[1] != key {
		t.Fatalf("retry keys = %v", keys)
	}
}

func TestCreditsTransactionsAndStats(t *testing.T) {
	h := newHarness(t)
	h.login()

	if _, _, err := h.run("credits", "transactions", "--type", "bogus"); err == nil {
		t.Fatal("unknown type should be refused")
	}
	out, _, err := h.run("credits", "transactions", "--type", "admin_adjustment")
	if err != nil || !strings.Contains(out, "admin adjustment") || !strings.Contains(out, "page 1 of 1") {
		t.Fatalf("transactions = %q, %v", out, err)
	}

	out, _, err = h.run("credits", "stats")
	if err != nil || !strings.Contains(out, "100000") || !strings.Contains(out, "12.5") {
		t.Fatalf("stats = %q, %v", out, err)
	}

	out, _, err = h.run("dashboard")
	if err != nil || !strings.Contains(out, "Users") {
		t.Fatalf("dashboard = %q, %v", out, err)
	}
}

func TestCreditsAddResolvesUserID(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("credits", "add", "--user", "7", "-a", "500", "-d", "goodwill")
	if err != nil || !strings.Contains(out, "Target: Anna <anna@example.com> (balance 2500)") {
		t.Fatalf("add = %q, %v", out, err)
	}

	_, errOut, err := h.run("credits", "add", "--user", "99", "-a", "500", "-d", "goodwill")
	if err == nil || !strings.Contains(errOut, "user_id: User not found") {
		t.Fatalf("unknown user = %q, %v", errOut, err)
	}
	if n := len(h.up.grantKeys()); n != 1 {
		t.Fatalf("grants = %d, want 1", n)
	}
}

func TestDashboardActivityAndCharts(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, _, err := h.run("dashboard", "activity")
	if err != nil || !strings.Contains(out, "credit purchase") || !strings.Contains(out, "Purchased 100 credits") {
		t.Fatalf("activity = %q, %v", out, err)
	}

	out, _, err = h.run("dashboard", "charts", "--metric", "credits", "--period", "7d")
	if err != nil || !strings.Contains(out, "credits 7d") || !strings.Contains(out, "Wed") || !strings.Contains(out, "150") {
		t.Fatalf("charts = %q, %v", out, err)
	}

	out, _, err = h.run("dashboard", "charts")
	if err != nil || !strings.Contains(out, "users 30d") {
		t.Fatalf("default charts = %q, %v", out, err)
	}
}
