package credits

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"magicpic_admin/internal/adminapi"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"
)

// Messages shown by the grant form.
const (
	MsgSelectUser      = "Please select a user"
	MsgAmountPositive  = "Amount must be positive"
	MsgDescriptionReq  = "Description is required"
	MsgGrantSucceeded  = "Credits added successfully!"
	MsgGrantFailed     = "Failed to add credits"
	TransactionsPath   = "/admin/credits/transactions"
	DefaultNotifyUsers = true
)

var (
	ErrSubmitInFlight   = errors.New("a grant submission is already in flight")
	ErrNeedsAcknowledge = errors.New("previous grant failed, acknowledge or edit before resubmitting")
	ErrFormCompleted    = errors.New("grant already succeeded, reset the form to grant again")
)

// Audit actions recorded around a submission.
const (
	ActionGrantSubmit  = domain.AuditActionGrantSubmit
	ActionGrantSuccess = domain.AuditActionGrantSuccess
	ActionGrantFailure = domain.AuditActionGrantFailure
)

// Granter performs the upstream grant.
type Granter interface {
	AddCredits(ctx context.Context, req domain.CreditGrantRequest) (*domain.GrantResult, error)
}

// Notifier shows toast-style messages to the admin.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Navigator moves the admin to another view.
type Navigator interface {
	Navigate(path string)
}

// Recorder receives grant lifecycle events, e.g. for an audit trail.
type Recorder interface {
	RecordGrant(ctx context.Context, action string, req domain.CreditGrantRequest, message string)
}

// GrantStatus is the submission state of a GrantForm.
type GrantStatus int

const (
	StatusIdle GrantStatus = iota
	StatusSubmitting
	StatusSuccess
	StatusFailed
)

func (s GrantStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusSubmitting:
		return "submitting"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s GrantStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ValidationError holds per-field messages for a rejected grant.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid grant: " + strings.Join(parts, "; ")
}

// GrantValues are the editable fields of the form.
type GrantValues struct {
	Target      *domain.Candidate `json:"target,omitempty"`
	Amount      int64             `json:"amount"`
	Description string            `json:"description"`
	ReferenceID string            `json:"reference_id,omitempty"`
	NotifyUser  bool              `json:"notify_user"`
}

// GrantState is a snapshot of the form.
type GrantState struct {
	Status  GrantStatus `json:"status"`
	Values  GrantValues `json:"values"`
	Message string      `json:"message,omitempty"`
}

// GrantForm submits credit grants. Only an idle form submits, so repeated
// clicks while a request is in flight never produce a second request.
type GrantForm struct {
	api      Granter
	notify   Notifier
	nav      Navigator
	recorder Recorder
	log      *slog.Logger

	mu      sync.Mutex
	status  GrantStatus
	values  GrantValues
	key     string
	message string
}

type GrantOption func(*GrantForm)

// WithRecorder attaches an audit recorder.
func WithRecorder(r Recorder) GrantOption {
	return func(f *GrantForm) { f.recorder = r }
}

func NewGrantForm(api Granter, notify Notifier, nav Navigator, opts ...GrantOption) *GrantForm {
	f := &GrantForm{
		api:    api,
		notify: notify,
		nav:    nav,
		log:    logger.Component("grant"),
		values: GrantValues{NotifyUser: DefaultNotifyUsers},
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// State returns a snapshot of the form.
func (f *GrantForm) State() GrantState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked()
}

func (f *GrantForm) stateLocked() GrantState {
	v := f.values
	if v.Target != nil {
		t := *v.Target
		v.Target = &t
	}
	return GrantState{Status: f.status, Values: v, Message: f.message}
}

// IdempotencyKey is the key the next submission will carry, empty until the
// first submit of the current values.
func (f *GrantForm) IdempotencyKey() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.key
}

func (f *GrantForm) SetTarget(c *domain.Candidate) {
	f.edit(func(v *GrantValues) bool {
		if c == nil {
			changed := v.Target != nil
			v.Target = nil
			return changed
		}
		if v.Target != nil && *v.Target == *c {
			return false
		}
		t := *c
		v.Target = &t
		return true
	})
}

func (f *GrantForm) SetAmount(amount int64) {
	f.edit(func(v *GrantValues) bool {
		changed := v.Amount != amount
		v.Amount = amount
		return changed
	})
}

func (f *GrantForm) SetDescription(desc string) {
	f.edit(func(v *GrantValues) bool {
		changed := v.Description != desc
		v.Description = desc
		return changed
	})
}

func (f *GrantForm) SetReferenceID(ref string) {
	f.edit(func(v *GrantValues) bool {
		changed := v.ReferenceID != ref
		v.ReferenceID = ref
		return changed
	})
}

func (f *GrantForm) SetNotifyUser(notify bool) {
	f.edit(func(v *GrantValues) bool {
		changed := v.NotifyUser != notify
		v.NotifyUser = notify
		return changed
	})
}

// Fill applies all values at once. Unchanged values count as no edit.
func (f *GrantForm) Fill(v GrantValues) {
	f.edit(func(cur *GrantValues) bool { return assign(cur, v) })
}

func assign(cur *GrantValues, v GrantValues) bool {
	sameTarget := (cur.Target == nil && v.Target == nil) ||
		(cur.Target != nil && v.Target != nil && *cur.Target == *v.Target)
	if sameTarget && cur.Amount == v.Amount && cur.Description == v.Description &&
		cur.ReferenceID == v.ReferenceID && cur.NotifyUser == v.NotifyUser {
		return false
	}
	if v.Target != nil {
		t := *v.Target
		v.Target = &t
	}
	*cur = v
	return true
}

// edit applies fn unless a request is in flight, so the values and key of
// that request stay what was sent. A real change rotates the idempotency key
// and returns a failed form to idle.
func (f *GrantForm) edit(fn func(*GrantValues) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.editLocked(fn)
}

func (f *GrantForm) editLocked(fn func(*GrantValues) bool) bool {
	if f.status == StatusSubmitting {
		return false
	}
	if !fn(&f.values) {
		return false
	}
	f.key = ""
	if f.status == StatusFailed {
		f.status = StatusIdle
		f.message = ""
	}
	return true
}

// ResumeKey makes the next submit of the current values carry key, so a
// retry from a new process after a lost response can still be deduplicated.
// It only applies to an idle form.
func (f *GrantForm) ResumeKey(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status != StatusIdle || key == "" {
		return false
	}
	f.key = key
	return true
}

// Acknowledge returns a failed form to idle keeping its values, so an
// unchanged resubmit reuses the idempotency key.
func (f *GrantForm) Acknowledge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusFailed {
		f.status = StatusIdle
		f.message = ""
	}
}

// Reset clears a form that is not submitting.
func (f *GrantForm) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusSubmitting {
		return
	}
	f.resetLocked()
}

func (f *GrantForm) resetLocked() {
	f.status = StatusIdle
	f.values = GrantValues{NotifyUser: DefaultNotifyUsers}
	f.key = ""
	f.message = ""
}

// Validate checks the current values without submitting.
func (f *GrantForm) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, err := f.requestLocked()
	return err
}

func (f *GrantForm) requestLocked() (domain.CreditGrantRequest, error) {
	v := f.values
	fields := make(map[string]string)
	if v.Target == nil || v.Target.ID == 0 {
		fields["user_id"] = MsgSelectUser
	}
	if v.Amount <= 0 {
		fields["amount"] = MsgAmountPositive
	}
	if strings.TrimSpace(v.Description) == "" {
		fields["description"] = MsgDescriptionReq
	}
	if len(fields) > 0 {
		return domain.CreditGrantRequest{}, &ValidationError{Fields: fields}
	}
	return domain.CreditGrantRequest{
		UserID:      v.Target.ID,
		Amount:      v.Amount,
		Description: strings.TrimSpace(v.Description),
		ReferenceID: strings.TrimSpace(v.ReferenceID),
		NotifyUser:  v.NotifyUser,
	}, nil
}

// Submit sends the grant. It issues at most one request and only from the
// idle state. Upstream failures are shown through the Notifier and also
// returned.
func (f *GrantForm) Submit(ctx context.Context) (*domain.GrantResult, error) {
	f.mu.Lock()
	req, err := f.beginLocked()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.send(ctx, req)
}

// SubmitValues is a form post: it applies v and submits in one step, so a
// concurrent post can neither swap the values nor pass the idle check twice.
// Posting again is the explicit retry of a failed form; after a success it
// starts a new grant.
func (f *GrantForm) SubmitValues(ctx context.Context, v GrantValues) (*domain.GrantResult, error) {
	f.mu.Lock()
	switch f.status {
	case StatusSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmitInFlight
	case StatusSuccess:
		f.resetLocked()
	case StatusFailed:
		f.status = StatusIdle
		f.message = ""
	}
	f.editLocked(func(cur *GrantValues) bool { return assign(cur, v) })
	req, err := f.beginLocked()
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.send(ctx, req)
}

// beginLocked moves an idle, valid form to Submitting and returns the request.
func (f *GrantForm) beginLocked() (domain.CreditGrantRequest, error) {
	switch f.status {
	case StatusSubmitting:
		return domain.CreditGrantRequest{}, ErrSubmitInFlight
	case StatusFailed:
		return domain.CreditGrantRequest{}, ErrNeedsAcknowledge
	case StatusSuccess:
		return domain.CreditGrantRequest{}, ErrFormCompleted
	}
	req, err := f.requestLocked()
	if err != nil {
		grantOutcomes.WithLabelValues("invalid").Inc()
		return domain.CreditGrantRequest{}, err
	}
	if f.key == "" {
		f.key = uuid.NewString()
	}
	req.IdempotencyKey = f.key
	f.status = StatusSubmitting
	f.message = ""
	return req, nil
}

func (f *GrantForm) send(ctx context.Context, req domain.CreditGrantRequest) (*domain.GrantResult, error) {
	f.record(ctx, ActionGrantSubmit, req, "")
	res, err := f.api.AddCredits(ctx, req)

	f.mu.Lock()
	if err != nil {
		msg := adminapi.UserMessage(err, MsgGrantFailed)
		f.status = StatusFailed
		f.message = msg
		f.mu.Unlock()

		grantOutcomes.WithLabelValues("failed").Inc()
		f.log.Warn("credit grant failed", "user_id", req.UserID, "amount", req.Amount, "key", req.IdempotencyKey, "error", err)
		f.record(ctx, ActionGrantFailure, req, msg)
		if f.notify != nil {
			f.notify.Error(msg)
		}
		return nil, err
	}
	f.status = StatusSuccess
	f.message = MsgGrantSucceeded
	f.mu.Unlock()

	grantOutcomes.WithLabelValues("success").Inc()
	f.log.Info("credit grant succeeded", "user_id", req.UserID, "amount", req.Amount, "key", req.IdempotencyKey)
	f.record(ctx, ActionGrantSuccess, req, MsgGrantSucceeded)
	if f.notify != nil {
		f.notify.Success(MsgGrantSucceeded)
	}
	if f.nav != nil {
		f.nav.Navigate(TransactionsPath)
	}
	return res, nil
}

func (f *GrantForm) record(ctx context.Context, action string, req domain.CreditGrantRequest, msg string) {
	if f.recorder == nil {
		return
	}
	f.recorder.RecordGrant(ctx, action, req, msg)
}
