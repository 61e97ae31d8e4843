package credits

import (
	"context"
	"log/slog"
	"sync"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"
)

// MsgHistoryFailed is shown instead of rows when a page cannot be loaded.
const MsgHistoryFailed = "Failed to load transactions"

// TransactionLister reads pages of the ledger.
type TransactionLister interface {
	ListTransactions(ctx context.Context, q domain.TransactionQuery) (*domain.TransactionPage, error)
}

// HistoryKey identifies one page of the history view.
type HistoryKey struct {
	Page   int                    `json:"page"`
	Type   domain.TransactionType `json:"type,omitempty"`
	UserID int64                  `json:"user_id,omitempty"`
}

func (k HistoryKey) query() domain.TransactionQuery {
	return domain.TransactionQuery{Page: k.Page, Type: k.Type, UserID: k.UserID}
}

// HistoryState is what the history view renders.
type HistoryState struct {
	Key          HistoryKey           `json:"key"`
	Loading      bool                 `json:"loading"`
	Transactions []domain.Transaction `json:"transactions"`
	Pagination   domain.Pagination    `json:"pagination"`
	Warnings     []ContinuityWarning  `json:"warnings,omitempty"`
	Empty        bool                 `json:"empty"`
	Error        string               `json:"error,omitempty"`
}

// HistoryViewer shows a paginated, filterable ledger. Every fetch carries a
// sequence number and only the response to the latest one is displayed.
type HistoryViewer struct {
	api TransactionLister
	log *slog.Logger

	mu        sync.Mutex
	seq       uint64
	state     HistoryState
	observers []func(HistoryState)
	wg        sync.WaitGroup
}

func NewHistoryViewer(api TransactionLister) *HistoryViewer {
	return &HistoryViewer{
		api:   api,
		log:   logger.Component("history"),
		state: HistoryState{Key: HistoryKey{Page: 1}},
	}
}

// OnChange registers fn to receive every state change. Observers run with
// the viewer locked and must not call back into it.
func (h *HistoryViewer) OnChange(fn func(HistoryState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

// State returns a snapshot of the current state.
func (h *HistoryViewer) State() HistoryState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}

// Key returns the current key.
func (h *HistoryViewer) Key() HistoryKey {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Key
}

// SetPage moves to page. It reports whether the key changed.
func (h *HistoryViewer) SetPage(ctx context.Context, page int) bool {
	if page < 1 {
		page = 1
	}
	return h.setKey(ctx, func(k HistoryKey) HistoryKey {
		k.Page = page
		return k
	})
}

// SetType filters by t, or clears the filter when t is empty. The page
// resets to 1.
func (h *HistoryViewer) SetType(ctx context.Context, t domain.TransactionType) bool {
	return h.setKey(ctx, func(k HistoryKey) HistoryKey {
		if k.Type == t {
			return k
		}
		return HistoryKey{Page: 1, Type: t, UserID: k.UserID}
	})
}

// SetUser filters by user id, 0 clears it. The page resets to 1.
func (h *HistoryViewer) SetUser(ctx context.Context, userID int64) bool {
	if userID < 0 {
		userID = 0
	}
	return h.setKey(ctx, func(k HistoryKey) HistoryKey {
		if k.UserID == userID {
			return k
		}
		return HistoryKey{Page: 1, Type: k.Type, UserID: userID}
	})
}

// Open jumps straight to key and fetches it, even if it is already current.
func (h *HistoryViewer) Open(ctx context.Context, key HistoryKey) {
	if key.Page < 1 {
		key.Page = 1
	}
	if key.UserID < 0 {
		key.UserID = 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetchLocked(ctx, key)
}

// Refresh re-fetches the current key.
func (h *HistoryViewer) Refresh(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fetchLocked(ctx, h.state.Key)
}

// Wait blocks until every fetch started so far has settled.
func (h *HistoryViewer) Wait() {
	h.wg.Wait()
}

func (h *HistoryViewer) setKey(ctx context.Context, next func(HistoryKey) HistoryKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := next(h.state.Key)
	if key == h.state.Key {
		return false
	}
	h.fetchLocked(ctx, key)
	return true
}

func (h *HistoryViewer) fetchLocked(ctx context.Context, key HistoryKey) {
	h.seq++
	seq := h.seq
	h.state = HistoryState{Key: key, Loading: true}
	h.publish()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		page, err := h.api.ListTransactions(ctx, key.query())

		h.mu.Lock()
		defer h.mu.Unlock()
		if seq != h.seq {
			staleResponses.WithLabelValues("history").Inc()
			h.log.Debug("discarding stale transactions page",
				"page", key.Page, "type", key.Type, "user_id", key.UserID, "seq", seq, "latest", h.seq)
			return
		}

		st := HistoryState{Key: key}
		if err != nil {
			h.log.Error("load transactions failed", "page", key.Page, "type", key.Type, "user_id", key.UserID, "error", err)
			st.Error = MsgHistoryFailed
			st.Empty = true
		} else {
			st.Transactions = page.Transactions
			st.Pagination = page.Pagination
			st.Warnings = CheckContinuity(page.Transactions)
			st.Empty = len(page.Transactions) == 0
			for _, w := range st.Warnings {
				h.log.Debug("ledger continuity warning", "transaction_id", w.TransactionID, "kind", w.Kind)
			}
		}
		h.state = st
		h.publish()
	}()
}

func (h *HistoryViewer) snapshot() HistoryState {
	st := h.state
	st.Transactions = append([]domain.Transaction(nil), h.state.Transactions...)
	st.Warnings = append([]ContinuityWarning(nil), h.state.Warnings...)
	return st
}

func (h *HistoryViewer) publish() {
	st := h.snapshot()
	for _, fn := range h.observers {
		fn(st)
	}
}
