package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an authenticated member of a company, a client, or the platform.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      Role           `gorm:"size:20;not null;index" json:"role"`
	Tenant
	// CreateDispute is the per-user createDispute permission.
	CreateDispute bool `gorm:"not null;default:false" json:"create_dispute"`
}

// BeforeSave keeps the manager's dispute flag pinned to true.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Role.CreateDisputeLocked() {
		u.CreateDispute = true
	}
	return nil
}
