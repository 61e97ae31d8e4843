package credits

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"magicpic_admin/internal/domain"
)

type fakeSearcher struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	users map[string][]domain.User
	err   error
}

func (f *fakeSearcher) SearchUsers(ctx context.Context, search string, limit int) ([]domain.User, error) {
	f.mu.Lock()
	f.calls = append(f.calls, search)
	gate := f.gates[search]
	f.mu.Unlock()
	if limit != LookupLimit {
		return nil, errors.New("unexpected limit")
	}
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.users[search], nil
}

func (f *fakeSearcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func collect(seq func(func(domain.Candidate) bool)) []domain.Candidate {
	var out []domain.Candidate
	for c := range seq {
		out = append(out, c)
	}
	return out
}

func TestQueryBelowThresholdIssuesNoRequest(t *testing.T) {
	api := &fakeSearcher{}
	l := NewLookup(api)

	for _, q := range []string{"", "a", "an", "ann", "  ann  ", "émi"} {
		if got := collect(l.Query(context.Background(), q)); len(got) != 0 {
			t.Errorf("Query(%q) yielded %d candidates", q, len(got))
		}
	}
	if n := api.callCount(); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestQueryIsLazyAndRestartable(t *testing.T) {
	api := &fakeSearcher{users: map[string][]domain.User{
		"anna": {{ID: 7, Name: "Anna", Email: "anna@example.com", Credits: 2500}},
	}}
	l := NewLookup(api)

	seq := l.Query(context.Background(), "anna")
	if n := api.callCount(); n != 0 {
		t.Fatalf("request issued before iteration: %d", n)
	}

	first := collect(seq)
	second := collect(seq)
	if n := api.callCount(); n != 1 {
		t.Fatalf("expected exactly one request, got %d", n)
	}
	if api.calls[0] != "anna" {
		t.Fatalf("searched %q", api.calls[0])
	}
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("replay mismatch: %v vs %v", first, second)
	}
	want := domain.Candidate{ID: 7, Name: "Anna", Email: "anna@example.com", Balance: 2500}
	if first[0] != want {
		t.Fatalf("candidate = %+v", first[0])
	}
}

func TestQueryFailureYieldsNothing(t *testing.T) {
	api := &fakeSearcher{err: errors.New("upstream down")}
	l := NewLookup(api)

	if got := collect(l.Query(context.Background(), "anna")); len(got) != 0 {
		t.Fatalf("expected no candidates, got %v", got)
	}
}

func TestTypeLastSearchWins(t *testing.T) {
	slow := make(chan struct{})
	fast := make(chan struct{})
	api := &fakeSearcher{
		gates: map[string]chan struct{}{"anna": slow, "annabel": fast},
		users: map[string][]domain.User{
			"anna":    {{ID: 1, Name: "Anna"}, {ID: 2, Name: "Annabel"}},
			"annabel": {{ID: 2, Name: "Annabel"}},
		},
	}
	l := NewLookup(api)
	ctx := context.Background()

	l.Type(ctx, "anna")
	l.Type(ctx, "annabel")
	close(fast)
	waitFor(t, func() bool { return !l.State().Loading })
	close(slow)
	l.Wait()

	st := l.State()
	if st.Query != "annabel" {
		t.Fatalf("query = %q", st.Query)
	}
	if len(st.Candidates) != 1 || st.Candidates[0].ID != 2 {
		t.Fatalf("candidates = %+v, want only the latest search", st.Candidates)
	}
}

func TestTypeShortQueryClearsCandidates(t *testing.T) {
	api := &fakeSearcher{users: map[string][]domain.User{"anna": {{ID: 1}}}}
	l := NewLookup(api)
	ctx := context.Background()

	l.Type(ctx, "anna")
	l.Wait()
	l.Type(ctx, "ann")
	l.Wait()

	st := l.State()
	if st.Loading || len(st.Candidates) != 0 {
		t.Fatalf("state = %+v", st)
	}
	if n := api.callCount(); n != 1 {
		t.Fatalf("calls = %d", n)
	}
}

func TestSelectBindsTargetAndDropsInFlight(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeSearcher{
		gates: map[string]chan struct{}{"anna": gate},
		users: map[string][]domain.User{"anna": {{ID: 1, Name: "Anna"}}},
	}
	l := NewLookup(api)

	l.Type(context.Background(), "anna")
	picked := domain.Candidate{ID: 9, Name: "Bob"}
	l.Select(picked)
	close(gate)
	l.Wait()

	st := l.State()
	if st.Query != "" || len(st.Candidates) != 0 {
		t.Fatalf("query and candidates should be cleared: %+v", st)
	}
	got, ok := l.Target()
	if !ok || got != picked {
		t.Fatalf("Target() = %+v, %v", got, ok)
	}

	l.ClearTarget()
	if _, ok := l.Target(); ok {
		t.Fatal("target should be cleared")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
