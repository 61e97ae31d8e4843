package credits

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"
)

const (
	// MinQueryLen is the longest query that is never sent upstream.
	MinQueryLen = 3
	// LookupLimit caps the number of candidates requested per search.
	LookupLimit = 10
)

// UserSearcher is the user directory the lookup queries.
type UserSearcher interface {
	SearchUsers(ctx context.Context, search string, limit int) ([]domain.User, error)
}

// Searchable trims q and reports whether it is long enough to query.
func Searchable(q string) (string, bool) {
	term := strings.TrimSpace(q)
	return term, utf8.RuneCountInString(term) > MinQueryLen
}

// LookupState is what the grant form shows for target resolution.
type LookupState struct {
	Query      string             `json:"query"`
	Loading    bool               `json:"loading"`
	Candidates []domain.Candidate `json:"candidates"`
	Target     *domain.Candidate  `json:"target,omitempty"`
}

// Lookup resolves the grant target from a search box.
type Lookup struct {
	api UserSearcher
	log *slog.Logger

	mu        sync.Mutex
	seq       uint64
	state     LookupState
	observers []func(LookupState)
	wg        sync.WaitGroup
}

func NewLookup(api UserSearcher) *Lookup {
	return &Lookup{api: api, log: logger.Component("lookup")}
}

// Query returns the candidates matching q. Nothing is requested for short
// queries. Otherwise the request runs on first iteration and its result is
// replayed on later iterations. Failures yield no candidates.
func (l *Lookup) Query(ctx context.Context, q string) iter.Seq[domain.Candidate] {
	term, ok := Searchable(q)
	if !ok {
		return func(func(domain.Candidate) bool) {}
	}

	var (
		once   sync.Once
		cached []domain.Candidate
	)
	return func(yield func(domain.Candidate) bool) {
		once.Do(func() {
			users, err := l.api.SearchUsers(ctx, term, LookupLimit)
			if err != nil {
				lookupQueries.WithLabelValues("error").Inc()
				l.log.Error("user search failed", "query", term, "error", err)
				return
			}
			lookupQueries.WithLabelValues("ok").Inc()
			if len(users) > LookupLimit {
				users = users[:LookupLimit]
			}
			cached = make([]domain.Candidate, 0, len(users))
			for _, u := range users {
				cached = append(cached, u.AsCandidate())
			}
		})
		for _, c := range cached {
			if !yield(c) {
				return
			}
		}
	}
}

// OnChange registers fn to receive every state change. Observers run with
// the lookup locked and must not call back into it.
func (l *Lookup) OnChange(fn func(LookupState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// State returns a snapshot of the current state.
func (l *Lookup) State() LookupState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Type records q as the current query and searches in the background. Only
// the response to the latest Type is published.
func (l *Lookup) Type(ctx context.Context, q string) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.state.Query = q
	l.state.Candidates = nil
	_, searchable := Searchable(q)
	l.state.Loading = searchable
	l.publish()
	l.mu.Unlock()

	if !searchable {
		return
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		found := make([]domain.Candidate, 0, LookupLimit)
		for c := range l.Query(ctx, q) {
			found = append(found, c)
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if seq != l.seq {
			staleResponses.WithLabelValues("lookup").Inc()
			l.log.Debug("discarding stale search result", "query", q, "seq", seq, "latest", l.seq)
			return
		}
		l.state.Loading = false
		l.state.Candidates = found
		l.publish()
	}()
}

// Select binds c as the grant target, clears the query and drops any search
// still in flight.
func (l *Lookup) Select(c domain.Candidate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	target := c
	l.state = LookupState{Target: &target}
	l.publish()
}

// ClearTarget unbinds the target so another user can be picked.
func (l *Lookup) ClearTarget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Target = nil
	l.publish()
}

// Target returns the bound target, if any.
func (l *Lookup) Target() (domain.Candidate, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.Target == nil {
		return domain.Candidate{}, false
	}
	return *l.state.Target, true
}

// Wait blocks until background searches finish.
func (l *Lookup) Wait() {
	l.wg.Wait()
}

func (l *Lookup) snapshot() LookupState {
	st := l.state
	st.Candidates = append([]domain.Candidate(nil), l.state.Candidates...)
	if l.state.Target != nil {
		t := *l.state.Target
		st.Target = &t
	}
	return st
}

func (l *Lookup) publish() {
	st := l.snapshot()
	for _, fn := range l.observers {
		fn(st)
	}
}
