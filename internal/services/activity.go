package services

import (
	"context"
	"time"

	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
)

// ActivityService reads the activity log.
type ActivityService struct {
	*core
}

// ActivityFilter narrows List.
type ActivityFilter struct {
	Action     string
	EntityType string
	Since      time.Time
	Page
}

// List returns visible entries, newest first.
func (s *ActivityService) List(ctx context.Context, a policy.Actor, f ActivityFilter) ([]models.ActivityLog, int64, error) {
	if err := s.authorize(ctx, a, permission.ViewActivityLogs, nil); err != nil {
		return nil, 0, err
	}
	q := scoped(s.db.WithContext(ctx).Model(&models.ActivityLog{}), a)
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.ActivityLog
	err := f.apply(q).Order("created_at DESC, id DESC").Find(&out).Error
	return out, total, err
}
