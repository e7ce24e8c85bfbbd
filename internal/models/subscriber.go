package models

import (
	"time"

	"gorm.io/gorm"
)

// SubscriberStatus is the lifecycle state of a company or client.
type SubscriberStatus string

const (
	StatusActive    SubscriberStatus = "active"
	StatusPending   SubscriberStatus = "pending"
	StatusCancelled SubscriberStatus = "cancelled"
	StatusFailed    SubscriberStatus = "failed"
)

var statusTransitions = map[SubscriberStatus][]SubscriberStatus{
	StatusPending:   {StatusActive, StatusFailed},
	StatusActive:    {StatusCancelled},
	StatusCancelled: {StatusActive},
	StatusFailed:    {StatusPending},
}

// CanTransitionTo reports whether next is reachable from s. Pending is only
// re-entered after a failure.
func (s SubscriberStatus) CanTransitionTo(next SubscriberStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Usage are the cumulative document counters of a subscriber.
type Usage struct {
	DocumentsUploaded   int64 `gorm:"not null;default:0" json:"documents_uploaded"`
	DocumentsDownloaded int64 `gorm:"not null;default:0" json:"documents_downloaded"`
	DocumentsShared     int64 `gorm:"not null;default:0" json:"documents_shared"`
	DocumentsScanned    int64 `gorm:"not null;default:0" json:"documents_scanned"`
	DocumentsIndexed    int64 `gorm:"not null;default:0" json:"documents_indexed"`
	DocumentsQAPassed   int64 `gorm:"column:documents_qa_passed;not null;default:0" json:"documents_qa_passed"`
}

// Company subscribes to a Plan.
type Company struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
	Name            string           `gorm:"size:255;not null" json:"name"`
	Email           string           `gorm:"size:255" json:"email,omitempty"`
	PlanID          *uint            `gorm:"index" json:"plan_id,omitempty"`
	Plan            *Plan            `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Status          SubscriberStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	StorageAssigned int              `gorm:"not null;default:0" json:"storage_assigned"`
	Usage
}

// Client belongs to a company and subscribes to one of its ClientPlans.
type Client struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DeletedAt       gorm.DeletedAt   `gorm:"index" json:"deleted_at,omitempty"`
	CompanyID       uint             `gorm:"index;not null" json:"company_id"`
	Name            string           `gorm:"size:255;not null" json:"name"`
	Email           string           `gorm:"size:255" json:"email,omitempty"`
	ClientPlanID    *uint            `gorm:"index" json:"client_plan_id,omitempty"`
	ClientPlan      *ClientPlan      `gorm:"foreignKey:ClientPlanID" json:"client_plan,omitempty"`
	Status          SubscriberStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	StorageAssigned int              `gorm:"not null;default:0" json:"storage_assigned"`
	Usage
}
