package service

import (
	"context"

	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/logger"
	"magicpic_admin/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

type auditStore interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	List(ctx context.Context, f repository.AuditFilter) ([]*domain.AuditLog, error)
}

// Actor identifies who performed an audited action.
type Actor struct {
	AdminID   int64
	IP        string
	UserAgent string
}

type actorKey struct{}

// WithActor attaches the acting admin to ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the admin attached by WithActor.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// AuditService handles audit logging. A nil *AuditService, or one built
// without a database, drops every entry.
type AuditService struct {
	repo auditStore
}

// NewAuditService returns nil when db is nil so callers can wire it unconditionally.
func NewAuditService(db *pgxpool.Pool) *AuditService {
	if db == nil {
		return nil
	}
	return &AuditService{repo: repository.NewAuditRepository(db)}
}

// Enabled reports whether entries are persisted.
func (s *AuditService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Log creates a new audit log entry for the actor in ctx
func (s *AuditService) Log(ctx context.Context, userID int64, action, category string, details map[string]interface{}) {
	if !s.Enabled() {
		return
	}
	actor, _ := ActorFrom(ctx)
	log := &domain.AuditLog{
		AdminID:   actor.AdminID,
		UserID:    userID,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
	}

	if err := s.repo.Create(ctx, log); err != nil {
		logger.Error("failed to create audit log", "error", err, "action", action, "admin_id", actor.AdminID, "user_id", userID)
	}
}

// RecordGrant logs a credit grant lifecycle event.
func (s *AuditService) RecordGrant(ctx context.Context, action string, req domain.CreditGrantRequest, message string) {
	details := map[string]interface{}{
		"amount":          req.Amount,
		"description":     req.Description,
		"notify_user":     req.NotifyUser,
		"idempotency_key": req.IdempotencyKey,
	}
	if req.ReferenceID != "" {
		details["reference_id"] = req.ReferenceID
	}
	if message != "" {
		details["message"] = message
	}

	s.Log(ctx, req.UserID, action, domain.AuditCategoryCredits, details)
}

// LogLogin logs an admin login
func (s *AuditService) LogLogin(ctx context.Context, email string) {
	s.Log(ctx, 0, domain.AuditActionLogin, domain.AuditCategoryAuth, map[string]interface{}{"email": email})
}

// LogLogout logs an admin logout
func (s *AuditService) LogLogout(ctx context.Context) {
	s.Log(ctx, 0, domain.AuditActionLogout, domain.AuditCategoryAuth, nil)
}

// GrantHistory returns the audit entries of one grant attempt chain.
func (s *AuditService) GrantHistory(ctx context.Context, idempotencyKey string) ([]*domain.AuditLog, error) {
	if !s.Enabled() {
		return nil, nil
	}
	return s.repo.List(ctx, repository.AuditFilter{
		Category:       domain.AuditCategoryCredits,
		IdempotencyKey: idempotencyKey,
	})
}

// RecentLogs returns recent audit entries for an admin, or for everyone when adminID is 0.
func (s *AuditService) RecentLogs(ctx context.Context, adminID int64, limit int) ([]*domain.AuditLog, error) {
	if !s.Enabled() {
		return nil, nil
	}
	return s.repo.List(ctx, repository.AuditFilter{AdminID: adminID, Limit: limit})
}
