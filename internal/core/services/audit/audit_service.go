package audit

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
	"github.com/lcalzada-xor/connd/internal/core/ports"
)

type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records action on target, attributed to the caller carried by ctx or to
// "system" when there is none.
func (s *AuditService) Log(ctx context.Context, action domain.AuditAction, target, details string) error {
	userID := "system"
	username := "system"

	if u := domain.CallerFrom(ctx); u != nil {
		userID = u.ID
		username = u.Username
	}

	entry, err := domain.NewAuditLog(userID, username, action, target, details)
	if err != nil {
		return err
	}

	return s.repo.SaveAuditLog(ctx, *entry)
}

func (s *AuditService) GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, limit)
}

var _ ports.AuditService = (*AuditService)(nil)
