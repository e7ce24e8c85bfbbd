package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrDisputeResolved is returned when a resolved dispute would change again.
var ErrDisputeResolved = errors.New("dispute is already resolved")

// Dispute is a problem report against a document. Resolving it is final.
type Dispute struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	DocumentID    uint      `gorm:"index;not null" json:"document_id"`
	Document      *Document `gorm:"foreignKey:DocumentID" json:"document,omitempty"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Resolve       bool      `gorm:"not null;default:false" json:"resolve"`
	CreatedByID   uint      `gorm:"index" json:"created_by_id"`
	CreatedByName string    `gorm:"size:255" json:"created_by_name"`

	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
	ResolvedByID *uint      `json:"resolved_by_id,omitempty"`
	Tenant
}

// BeforeUpdate rejects changes to a dispute already stored as resolved.
func (d *Dispute) BeforeUpdate(tx *gorm.DB) error {
	if d.ID == 0 {
		return nil
	}
	var n int64
	err := tx.Session(&gorm.Session{NewDB: true}).
		Model(&Dispute{}).
		Where("id = ? AND resolve = ?", d.ID, true).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrDisputeResolved
	}
	return nil
}
