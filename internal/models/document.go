package models

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/workflow"
)

// Pipeline stages a document can be passed to.
const (
	StageIndexer = "indexer"
	StageQA      = "qa"
	StageOwner   = "owner"
)

var (
	progressMu       sync.RWMutex
	progressResolver = workflow.Default()
)

// UseProgressResolver sets the resolver used to maintain Document.ProgressNumber.
// Call it once during bootstrap.
func UseProgressResolver(r workflow.Resolver) {
	progressMu.Lock()
	progressResolver = r
	progressMu.Unlock()
}

// ProgressResolver returns the resolver configured with UseProgressResolver.
func ProgressResolver() workflow.Resolver {
	progressMu.RLock()
	defer progressMu.RUnlock()
	return progressResolver
}

// Document is an archived file moving through scan, index, QA and publish.
type Document struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title   string `gorm:"size:255;not null" json:"title"`
	TagName string `gorm:"size:120;index" json:"tag_name,omitempty"`
	FileKey string `gorm:"size:512" json:"file_key,omitempty"`

	IsPublished     bool   `gorm:"not null;default:false" json:"is_published"`
	PassedTo        string `gorm:"size:32" json:"passed_to,omitempty"`
	IndexerPassedID *uint  `json:"indexer_passed_id,omitempty"`
	QAPassedID      *uint  `gorm:"column:qa_passed_id" json:"qa_passed_id,omitempty"`
	// ProgressNumber is a stored copy of the derived progress, rewritten on every save.
	ProgressNumber int `gorm:"not null;default:0" json:"progress_number"`

	AddedByID   uint `gorm:"index" json:"added_by_id"`
	AddedByRole Role `gorm:"size:20" json:"added_by_role"`
	Tenant
}

// Markers extracts the workflow inputs.
func (d *Document) Markers() workflow.Markers {
	return workflow.Markers{
		IndexerPassed: d.IndexerPassedID != nil,
		QAPassed:      d.QAPassedID != nil,
		PassedTo:      d.PassedTo,
		Published:     d.IsPublished,
	}
}

// Workflow resolves the document with the configured resolver.
func (d *Document) Workflow() workflow.Result {
	return ProgressResolver().Resolve(d.Markers())
}

// BeforeSave rewrites ProgressNumber from the markers so the stored copy
// cannot drift.
func (d *Document) BeforeSave(tx *gorm.DB) error {
	d.ProgressNumber = d.Workflow().Progress
	return nil
}
