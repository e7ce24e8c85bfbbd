package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog records one mutating action for the activity log screen.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time         `gorm:"index" json:"created_at"`
	UserID     uint              `gorm:"index" json:"user_id"`
	UserName   string            `gorm:"size:255" json:"user_name"`
	Role       Role              `gorm:"size:20" json:"role"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   uint              `json:"entity_id"`
	Details    datatypes.JSONMap `json:"details,omitempty"`
	Tenant
}
