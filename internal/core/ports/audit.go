package ports

import (
	"context"

	"github.com/lcalzada-xor/connd/internal/core/domain"
)

// AuditService records security-sensitive operations.
type AuditService interface {
	Log(ctx context.Context, action domain.AuditAction, target, details string) error
	GetLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	SaveAuditLog(ctx context.Context, log domain.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error)
}
