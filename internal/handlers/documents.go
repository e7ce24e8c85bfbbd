package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/services"
	"github.com/diewo77/go-archive/internal/workflow"
	"github.com/diewo77/go-archive/validation"
)

type DocumentHandler struct {
	responder
	svc *services.DocumentService
}

func NewDocumentHandler(svc *services.DocumentService, log logrus.FieldLogger) *DocumentHandler {
	return &DocumentHandler{responder: newResponder(log), svc: svc}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.DocumentFilter{Tag: r.URL.Query().Get("tag"), Page: pageOf(r)}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := workflow.ParseStatus(raw)
		if !ok {
			h.fail(w, r, validation.Field("status", "invalid_choice"))
			return
		}
		f.Status = st
	}
	docs, total, err := h.svc.List(r.Context(), actorOf(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(docs, total, f.Page))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	doc, err := h.svc.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.DocumentInput
	if !h.decode(w, r, &in) {
		return
	}
	doc, err := h.svc.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

type batchRequest struct {
	Documents []services.DocumentInput `json:"documents"`
}

// Batch uploads several documents in one transaction.
func (h *DocumentHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var in batchRequest
	if !h.decode(w, r, &in) {
		return
	}
	docs, err := h.svc.CreateBatch(r.Context(), actorOf(r), in.Documents)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, listOf(docs, int64(len(docs)), services.Page{}))
}

type uploadURLRequest struct {
	FileName string `json:"file_name"`
}

func (h *DocumentHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var in uploadURLRequest
	if !h.decode(w, r, &in) {
		return
	}
	up, err := h.svc.UploadURL(r.Context(), actorOf(r), in.FileName)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, up)
}

type routeRequest struct {
	PassedTo string `json:"passed_to"`
}

func (h *DocumentHandler) Route(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in routeRequest
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r)(h.svc.Route(r.Context(), actorOf(r), id, in.PassedTo))
}

func (h *DocumentHandler) Index(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r)(h.svc.Index(r.Context(), actorOf(r), id))
	}
}

func (h *DocumentHandler) QA(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r)(h.svc.Review(r.Context(), actorOf(r), id))
	}
}

func (h *DocumentHandler) Publish(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r)(h.svc.SetPublished(r.Context(), actorOf(r), id, true))
	}
}

func (h *DocumentHandler) Unpublish(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r)(h.svc.SetPublished(r.Context(), actorOf(r), id, false))
	}
}

func (h *DocumentHandler) respond(w http.ResponseWriter, r *http.Request) func(services.DocumentView, error) {
	return func(doc services.DocumentView, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, doc)
	}
}

func (h *DocumentHandler) Share(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	link, err := h.svc.Share(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, link)
}

func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	link, err := h.svc.Download(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, link)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *DocumentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in chatRequest
	if !h.decode(w, r, &in) {
		return
	}
	msg, err := h.svc.Chat(r.Context(), actorOf(r), id, in.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, msg)
}

// Audit lists documents whose stored progress drifted; ?repair=true fixes them.
func (h *DocumentHandler) Audit(w http.ResponseWriter, r *http.Request) {
	repair := httpx.QueryBool(r, "repair")
	found, err := h.svc.Audit(r.Context(), actorOf(r), repair != nil && *repair)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(found, int64(len(found)), services.Page{}))
}
