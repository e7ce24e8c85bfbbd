package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/storage"
	"github.com/diewo77/go-archive/internal/workflow"
	"github.com/diewo77/go-archive/validation"
)

// DocumentService runs the scan, index, QA and publish pipeline.
type DocumentService struct {
	*core
}

// DocumentView is a document with its resolved workflow state.
type DocumentView struct {
	models.Document
	Status workflow.Status `json:"status"`
}

func viewOf(d models.Document) DocumentView {
	res := d.Workflow()
	d.ProgressNumber = res.Progress
	return DocumentView{Document: d, Status: res.Status}
}

// DocumentInput describes an upload. CompanyID and ClientID are only read
// for platform actors; everyone else uploads into their own tenant.
type DocumentInput struct {
	Title     string `json:"title"`
	TagName   string `json:"tag_name"`
	FileKey   string `json:"file_key"`
	CompanyID *uint  `json:"company_id,omitempty"`
	ClientID  *uint  `json:"client_id,omitempty"`
}

// DocumentFilter narrows List.
type DocumentFilter struct {
	Status workflow.Status
	Tag    string
	Page
}

// withStatus filters on the derived status with the same precedence as the
// resolver, so the database never needs the cached progress.
func withStatus(db *gorm.DB, s workflow.Status) *gorm.DB {
	const passed = "indexer_passed_id IS NOT NULL AND qa_passed_id IS NOT NULL"
	switch s {
	case workflow.StatusComplete:
		return db.Where(passed+" AND is_published = ?", true)
	case workflow.StatusUnpublished:
		return db.Where(passed+" AND is_published = ?", false)
	case workflow.StatusInProgress:
		return db.Where("NOT (" + passed + ") AND COALESCE(passed_to, '') <> ''")
	case workflow.StatusPending:
		return db.Where("NOT (" + passed + ") AND COALESCE(passed_to, '') = ''")
	default:
		return db
	}
}

// List returns the visible documents and the total before paging.
func (s *DocumentService) List(ctx context.Context, a policy.Actor, f DocumentFilter) ([]DocumentView, int64, error) {
	if err := s.authorize(ctx, a, permission.ViewDocuments, nil); err != nil {
		return nil, 0, err
	}
	q := scoped(s.db.WithContext(ctx).Model(&models.Document{}), a)
	q = withStatus(q, f.Status)
	if f.Tag != "" {
		q = q.Where("tag_name = ?", f.Tag)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var docs []models.Document
	if err := f.apply(q).Order("created_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, 0, err
	}
	out := make([]DocumentView, len(docs))
	for i, d := range docs {
		out[i] = viewOf(d)
	}
	return out, total, nil
}

// Get returns one visible document.
func (s *DocumentService) Get(ctx context.Context, a policy.Actor, id uint) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.ViewDocuments, nil); err != nil {
		return DocumentView{}, err
	}
	d, err := s.load(s.db.WithContext(ctx), a, id)
	if err != nil {
		return DocumentView{}, err
	}
	return viewOf(d), nil
}

func (s *DocumentService) load(db *gorm.DB, a policy.Actor, id uint) (models.Document, error) {
	var d models.Document
	err := scoped(db, a).First(&d, id).Error
	return d, err
}

func (s *DocumentService) tenantFor(a policy.Actor, in DocumentInput, v validation.Violations) models.Tenant {
	if !a.Platform() {
		return a.Tenant
	}
	if in.CompanyID == nil {
		v.Add("company_id", "required")
	}
	return models.Tenant{CompanyID: in.CompanyID, ClientID: in.ClientID}
}

func (s *DocumentService) newDocument(a policy.Actor, in DocumentInput, v validation.Violations, field string) models.Document {
	in.Title = strings.TrimSpace(in.Title)
	validation.Required(field+"title", in.Title, v)
	return models.Document{
		Title:       in.Title,
		TagName:     strings.TrimSpace(in.TagName),
		FileKey:     in.FileKey,
		AddedByID:   a.UserID,
		AddedByRole: a.Role,
		Tenant:      s.tenantFor(a, in, v),
	}
}

func (s *DocumentService) insert(tx *gorm.DB, a policy.Actor, d *models.Document) error {
	if err := tx.Create(d).Error; err != nil {
		return err
	}
	if err := bumpUsage(tx, d.Tenant, "documents_uploaded"); err != nil {
		return err
	}
	if a.Role == models.RoleScanner {
		if err := bumpUsage(tx, d.Tenant, "documents_scanned"); err != nil {
			return err
		}
	}
	return record(tx, a, "document.upload", "document", d.ID, d.Tenant, map[string]any{"title": d.Title})
}

// Create uploads a single document.
func (s *DocumentService) Create(ctx context.Context, a policy.Actor, in DocumentInput) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.UploadDocument, nil); err != nil {
		return DocumentView{}, err
	}
	v := make(validation.Violations)
	d := s.newDocument(a, in, v, "")
	if err := v.Err(); err != nil {
		return DocumentView{}, err
	}
	if err := s.tx(ctx, func(tx *gorm.DB) error { return s.insert(tx, a, &d) }); err != nil {
		return DocumentView{}, err
	}
	return viewOf(d), nil
}

// CreateBatch uploads several documents at once. More than one requires the
// multiple uploads plan flag. Either all documents are stored or none.
func (s *DocumentService) CreateBatch(ctx context.Context, a policy.Actor, in []DocumentInput) ([]DocumentView, error) {
	if err := s.authorize(ctx, a, permission.UploadDocument, nil); err != nil {
		return nil, err
	}
	if len(in) > 1 {
		if err := s.authorize(ctx, a, permission.MultipleUploads, nil); err != nil {
			return nil, err
		}
	}
	v := make(validation.Violations)
	if len(in) == 0 {
		v.Add("documents", "required")
	}
	docs := make([]models.Document, len(in))
	for i, item := range in {
		docs[i] = s.newDocument(a, item, v, fmt.Sprintf("documents[%d].", i))
	}
	if err := v.Err(); err != nil {
		return nil, err
	}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		for i := range docs {
			if err := s.insert(tx, a, &docs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]DocumentView, len(docs))
	for i, d := range docs {
		out[i] = viewOf(d)
	}
	return out, nil
}

// UploadURL presigns a direct upload into the actor's tenant prefix.
func (s *DocumentService) UploadURL(ctx context.Context, a policy.Actor, fileName string) (storage.Upload, error) {
	if err := s.authorize(ctx, a, permission.UploadDocument, nil); err != nil {
		return storage.Upload{}, err
	}
	if strings.TrimSpace(fileName) == "" {
		return storage.Upload{}, validation.Field("file_name", "required")
	}
	scope := "platform"
	switch {
	case a.Tenant.ClientID != nil:
		scope = fmt.Sprintf("clients/%d", *a.Tenant.ClientID)
	case a.Tenant.CompanyID != nil:
		scope = fmt.Sprintf("companies/%d", *a.Tenant.CompanyID)
	}
	up, err := s.store.PresignUpload(ctx, scope, fileName)
	return up, translate(err)
}

// mutate loads a visible document, applies fn and saves it with an activity
// entry. The save recomputes the stored progress.
func (s *DocumentService) mutate(ctx context.Context, a policy.Actor, id uint, action string, fn func(tx *gorm.DB, d *models.Document) error) (DocumentView, error) {
	var d models.Document
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		if d, err = s.load(tx, a, id); err != nil {
			return err
		}
		if err := fn(tx, &d); err != nil {
			return err
		}
		if err := tx.Save(&d).Error; err != nil {
			return err
		}
		res := d.Workflow()
		return record(tx, a, action, "document", d.ID, d.Tenant, map[string]any{
			"status":   string(res.Status),
			"progress": res.Progress,
		})
	})
	if err != nil {
		return DocumentView{}, err
	}
	return viewOf(d), nil
}

// Route passes a document to the next stage.
func (s *DocumentService) Route(ctx context.Context, a policy.Actor, id uint, stage string) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.RouteDocument, nil); err != nil {
		return DocumentView{}, err
	}
	v := make(validation.Violations)
	validation.OneOf("passed_to", stage, []string{models.StageIndexer, models.StageQA, models.StageOwner}, v)
	if err := v.Err(); err != nil {
		return DocumentView{}, err
	}
	return s.mutate(ctx, a, id, "document.route", func(_ *gorm.DB, d *models.Document) error {
		d.PassedTo = stage
		return nil
	})
}

// Index marks a document as indexed by the actor.
func (s *DocumentService) Index(ctx context.Context, a policy.Actor, id uint) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.IndexDocument, nil); err != nil {
		return DocumentView{}, err
	}
	return s.mutate(ctx, a, id, "document.index", func(tx *gorm.DB, d *models.Document) error {
		if d.IndexerPassedID != nil {
			return conflictf("already_indexed", "document %d is already indexed", d.ID)
		}
		d.IndexerPassedID = &a.UserID
		return bumpUsage(tx, d.Tenant, "documents_indexed")
	})
}

// Review passes a document through QA. It must be indexed first.
func (s *DocumentService) Review(ctx context.Context, a policy.Actor, id uint) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.ReviewDocument, nil); err != nil {
		return DocumentView{}, err
	}
	return s.mutate(ctx, a, id, "document.qa", func(tx *gorm.DB, d *models.Document) error {
		if d.IndexerPassedID == nil {
			return conflictf("not_indexed", "document %d has not been indexed", d.ID)
		}
		if d.QAPassedID != nil {
			return conflictf("already_reviewed", "document %d already passed QA", d.ID)
		}
		d.QAPassedID = &a.UserID
		return bumpUsage(tx, d.Tenant, "documents_qa_passed")
	})
}

// SetPublished publishes or unpublishes a reviewed document.
func (s *DocumentService) SetPublished(ctx context.Context, a policy.Actor, id uint, published bool) (DocumentView, error) {
	if err := s.authorize(ctx, a, permission.PublishDocument, nil); err != nil {
		return DocumentView{}, err
	}
	action := "document.unpublish"
	if published {
		action = "document.publish"
	}
	return s.mutate(ctx, a, id, action, func(_ *gorm.DB, d *models.Document) error {
		if published && (d.IndexerPassedID == nil || d.QAPassedID == nil) {
			return conflictf("not_reviewed", "document %d must pass indexing and QA before publishing", d.ID)
		}
		d.IsPublished = published
		return nil
	})
}

// Link is a shareable or downloadable URL. URL is empty when the document
// has no stored file or storage is not configured.
type Link struct {
	DocumentID uint   `json:"document_id"`
	URL        string `json:"url,omitempty"`
}

func (s *DocumentService) link(ctx context.Context, a policy.Actor, id uint, action, counter string) (Link, error) {
	var d models.Document
	err := s.tx(ctx, func(tx *gorm.DB) error {
		var err error
		if d, err = s.load(tx, a, id); err != nil {
			return err
		}
		if err := bumpUsage(tx, d.Tenant, counter); err != nil {
			return err
		}
		return record(tx, a, action, "document", d.ID, d.Tenant, nil)
	})
	if err != nil {
		return Link{}, err
	}
	l := Link{DocumentID: d.ID}
	if d.FileKey != "" {
		url, err := s.store.PresignDownload(ctx, d.FileKey)
		if err != nil && !errors.Is(err, storage.ErrDisabled) {
			return Link{}, err
		}
		l.URL = url
	}
	return l, nil
}

// Share counts a share and returns a link to the file.
func (s *DocumentService) Share(ctx context.Context, a policy.Actor, id uint) (Link, error) {
	if err := s.authorize(ctx, a, permission.ShareDocument, nil); err != nil {
		return Link{}, err
	}
	return s.link(ctx, a, id, "document.share", "documents_shared")
}

// Download counts a download and returns a link to the file.
func (s *DocumentService) Download(ctx context.Context, a policy.Actor, id uint) (Link, error) {
	if err := s.authorize(ctx, a, permission.ViewDocuments, nil); err != nil {
		return Link{}, err
	}
	return s.link(ctx, a, id, "document.download", "documents_downloaded")
}

// ChatMessage is a question asked about a document.
type ChatMessage struct {
	DocumentID uint      `json:"document_id"`
	Message    string    `json:"message"`
	AskedAt    time.Time `json:"asked_at"`
}

// Chat records a question about a document. Answering it is left to an
// external assistant; only the gate and the audit trail live here.
func (s *DocumentService) Chat(ctx context.Context, a policy.Actor, id uint, message string) (ChatMessage, error) {
	if err := s.authorize(ctx, a, permission.ChatWithDocument, nil); err != nil {
		return ChatMessage{}, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return ChatMessage{}, validation.Field("message", "required")
	}
	msg := ChatMessage{DocumentID: id, Message: message, AskedAt: s.now()}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		d, err := s.load(tx, a, id)
		if err != nil {
			return err
		}
		return record(tx, a, "document.chat", "document", d.ID, d.Tenant, map[string]any{"message": message})
	})
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// Discrepancy is a stored document whose cached progress disagrees with
// its markers.
type Discrepancy struct {
	DocumentID     uint            `json:"document_id"`
	CachedProgress int             `json:"cached_progress"`
	Progress       int             `json:"progress"`
	Status         workflow.Status `json:"status"`
	Repaired       bool            `json:"repaired"`
}

// Audit scans the visible documents for drifted progress values. With
// repair, drifted rows are saved again, which rewrites the stored progress.
func (s *DocumentService) Audit(ctx context.Context, a policy.Actor, repair bool) ([]Discrepancy, error) {
	if err := s.authorize(ctx, a, permission.AuditDocuments, nil); err != nil {
		return nil, err
	}
	resolver := models.ProgressResolver()
	var out []Discrepancy
	var batch []models.Document
	res := scoped(s.db.WithContext(ctx).Model(&models.Document{}), a).
		FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
			for i := range batch {
				d := &batch[i]
				derived, bad := resolver.Audit(d.Markers(), d.ProgressNumber, "")
				if bad == nil {
					continue
				}
				s.log.WithFields(logrus.Fields{
					"document_id": d.ID,
					"cached":      bad.CachedProgress,
					"derived":     derived.Progress,
				}).Warn("document progress drifted from its markers")
				if s.metrics != nil {
					s.metrics.WorkflowDrift.Inc()
				}
				item := Discrepancy{DocumentID: d.ID, CachedProgress: bad.CachedProgress, Progress: derived.Progress, Status: derived.Status}
				if repair {
					if err := s.db.WithContext(ctx).Model(d).UpdateColumn("progress_number", derived.Progress).Error; err != nil {
						return err
					}
					item.Repaired = true
				}
				out = append(out, item)
			}
			return nil
		})
	if res.Error != nil {
		return nil, res.Error
	}
	return out, nil
}
