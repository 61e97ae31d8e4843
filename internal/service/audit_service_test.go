package service

import (
	"context"
	"errors"
	"testing"

	"magicpic_admin/internal/credits"
	"magicpic_admin/internal/domain"
	"magicpic_admin/internal/repository"
)

type memAudit struct {
	logs []*domain.AuditLog
	err  error
}

func (m *memAudit) Create(_ context.Context, log *domain.AuditLog) error {
	if m.err != nil {
		return m.err
	}
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *memAudit) List(_ context.Context, f repository.AuditFilter) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	for _, l := range m.logs {
		if f.IdempotencyKey != "" && l.Details["idempotency_key"] != f.IdempotencyKey {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

var _ credits.Recorder = (*AuditService)(nil)

func TestRecordGrantUsesActor(t *testing.T) {
	store := &memAudit{}
	s := &AuditService{repo: store}
	ctx := WithActor(context.Background(), Actor{AdminID: 3, IP: "10.0.0.1", UserAgent: "test"})

	req := domain.CreditGrantRequest{UserID: 7, Amount: 500, Description: "bonus", IdempotencyKey: "k1"}
	s.RecordGrant(ctx, credits.ActionGrantSubmit, req, "")
	s.RecordGrant(ctx, credits.ActionGrantFailure, req, "insufficient balance reserve")

	if len(store.logs) != 2 {
		t.Fatalf("logs = %d", len(store.logs))
	}
	got := store.logs[1]
	if got.AdminID != 3 || got.UserID != 7 || got.IP != "10.0.0.1" {
		t.Fatalf("log = %+v", got)
	}
	if got.Action != domain.AuditActionGrantFailure || got.Category != domain.AuditCategoryCredits {
		t.Fatalf("action/category = %s/%s", got.Action, got.Category)
	}
	if got.Details["message"] != "insufficient balance reserve" || got.Details["idempotency_key"] != "k1" {
		t.Fatalf("details = %v", got.Details)
	}

	history, err := s.GrantHistory(ctx, "k1")
	if err != nil || len(history) != 2 {
		t.Fatalf("GrantHistory = %d, %v", len(history), err)
	}
}

func TestDisabledAuditIsNoop(t *testing.T) {
	var s *AuditService
	if s.Enabled() {
		t.Fatal("nil service should be disabled")
	}
	s.RecordGrant(context.Background(), credits.ActionGrantSubmit, domain.CreditGrantRequest{}, "")
	logs, err := s.RecentLogs(context.Background(), 0, 10)
	if err != nil || logs != nil {
		t.Fatalf("RecentLogs = %v, %v", logs, err)
	}
	if NewAuditService(nil) != nil {
		t.Fatal("NewAuditService(nil) should return nil")
	}
}

func TestAuditStoreFailureIsLogged(t *testing.T) {
	s := &AuditService{repo: &memAudit{err: errors.New("db down")}}
	s.LogLogin(context.Background(), "ops@example.com")
}
