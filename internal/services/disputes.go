package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/validation"
)

// DisputeService handles problem reports against documents.
type DisputeService struct {
	*core
}

// DisputeInput raises a dispute.
type DisputeInput struct {
	DocumentID  uint   `json:"document_id"`
	Description string `json:"description"`
}

// DisputeFilter narrows List.
type DisputeFilter struct {
	Resolved *bool
	Page
}

// Create raises a dispute on a visible document.
func (s *DisputeService) Create(ctx context.Context, a policy.Actor, in DisputeInput) (models.Dispute, error) {
	if err := s.authorize(ctx, a, permission.CreateDispute, nil); err != nil {
		return models.Dispute{}, err
	}
	in.Description = strings.TrimSpace(in.Description)
	v := make(validation.Violations)
	validation.Required("description", in.Description, v)
	if in.DocumentID == 0 {
		v.Add("document_id", "required")
	}
	if err := v.Err(); err != nil {
		return models.Dispute{}, err
	}
	var d models.Dispute
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var doc models.Document
		if err := scoped(tx, a).First(&doc, in.DocumentID).Error; err != nil {
			return err
		}
		d = models.Dispute{
			DocumentID:    doc.ID,
			Description:   in.Description,
			CreatedByID:   a.UserID,
			CreatedByName: a.Name,
			Tenant:        doc.Tenant,
		}
		if err := tx.Create(&d).Error; err != nil {
			return err
		}
		return record(tx, a, "dispute.create", "dispute", d.ID, d.Tenant, map[string]any{"document_id": doc.ID})
	})
	return d, err
}

// List returns visible disputes, open ones first.
func (s *DisputeService) List(ctx context.Context, a policy.Actor, f DisputeFilter) ([]models.Dispute, int64, error) {
	if err := s.authorize(ctx, a, permission.ViewDisputes, nil); err != nil {
		return nil, 0, err
	}
	q := scoped(s.db.WithContext(ctx).Model(&models.Dispute{}), a)
	if f.Resolved != nil {
		q = q.Where("resolve = ?", *f.Resolved)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.Dispute
	err := f.apply(q).Order("resolve, created_at DESC").Find(&out).Error
	return out, total, err
}

// Resolve closes a dispute. Resolved disputes never change again.
func (s *DisputeService) Resolve(ctx context.Context, a policy.Actor, id uint) (models.Dispute, error) {
	if err := s.authorize(ctx, a, permission.ResolveDispute, nil); err != nil {
		return models.Dispute{}, err
	}
	var d models.Dispute
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(tx, a).First(&d, id).Error; err != nil {
			return err
		}
		now := s.now()
		d.Resolve = true
		d.ResolvedAt = &now
		d.ResolvedByID = &a.UserID
		if err := tx.Omit("Document").Save(&d).Error; err != nil {
			return err
		}
		return record(tx, a, "dispute.resolve", "dispute", d.ID, d.Tenant, nil)
	})
	return d, translate(err)
}
