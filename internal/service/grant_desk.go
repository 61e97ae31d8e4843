package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"
)

// UI is where a grant form reports its outcome.
type UI interface {
	credits.Notifier
	credits.Navigator
}

// errNoClient means the request context carries no admin API client.
var errNoClient = errors.New("no admin api client in context")

// contextGranter sends grants with the client of the current request, so a
// form outlives the token that created it.
type contextGranter struct{}

func (contextGranter) AddCredits(ctx context.Context, req domain.CreditGrantRequest) (*domain.GrantResult, error) {
	c, ok := adminapi.FromContext(ctx)
	if !ok {
		return nil, errNoClient
	}
	return c.AddCredits(ctx, req)
}

// GrantDesk keeps one grant form per admin. Requests from the same admin
// share it, so a second submit while one is in flight is refused. Forms left
// untouched are dropped by Sweep.
type GrantDesk struct {
	audit *AuditService
	ui    func(adminKey string) UI
	now   func() time.Time

	mu    sync.Mutex
	forms map[string]*deskEntry
}

type deskEntry struct {
	form     *credits.GrantForm
	lastUsed time.Time
}

// NewGrantDesk creates a desk. ui may be nil when nobody listens for outcomes.
func NewGrantDesk(audit *AuditService, ui func(adminKey string) UI) *GrantDesk {
	return &GrantDesk{audit: audit, ui: ui, now: time.Now, forms: make(map[string]*deskEntry)}
}

// Form returns the admin's form, creating it on first use.
func (d *GrantDesk) Form(adminKey string) *credits.GrantForm {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.forms[adminKey]; ok {
		e.lastUsed = d.now()
		return e.form
	}

	var opts []credits.GrantOption
	if d.audit.Enabled() {
		opts = append(opts, credits.WithRecorder(d.audit))
	}
	var notify credits.Notifier
	var nav credits.Navigator
	if d.ui != nil {
		if ui := d.ui(adminKey); ui != nil {
			notify, nav = ui, ui
		}
	}
	f := credits.NewGrantForm(contextGranter{}, notify, nav, opts...)
	d.forms[adminKey] = &deskEntry{form: f, lastUsed: d.now()}
	return f
}

// Forget drops the admin's form, e.g. at logout.
func (d *GrantDesk) Forget(adminKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.forms, adminKey)
}

// Len reports how many forms the desk holds.
func (d *GrantDesk) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.forms)
}

// Sweep drops forms not used for maxIdle. A form with a grant in flight is
// kept until it settles.
func (d *GrantDesk) Sweep(maxIdle time.Duration) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := d.now().Add(-maxIdle)
	n := 0
	for key, e := range d.forms {
		if e.lastUsed.After(cutoff) || e.form.State().Status == credits.StatusSubmitting {
			continue
		}
		delete(d.forms, key)
		n++
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (d *GrantDesk) Run(ctx context.Context, every, maxIdle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.Sweep(maxIdle); n > 0 {
				logger.Debug("grant forms evicted", "count", n, "remaining", d.Len())
			}
		}
	}
}
