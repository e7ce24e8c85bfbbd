package handlers

import (
	"net/http"

	"github.com/shockerli/cvt"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/services"
)

// InvoiceHandler serves one invoice kind. The router mounts one per kind.
type InvoiceHandler struct {
	responder
	svc  *services.InvoiceService
	kind models.InvoiceKind
}

func NewInvoiceHandler(svc *services.InvoiceService, kind models.InvoiceKind, log logrus.FieldLogger) *InvoiceHandler {
	return &InvoiceHandler{responder: newResponder(log), svc: svc, kind: kind}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.InvoiceFilter{
		Month:     r.URL.Query().Get("month"),
		Submitted: httpx.QueryBool(r, "submitted"),
		Verified:  httpx.QueryBool(r, "verified"),
		Page:      pageOf(r),
	}
	out, total, err := h.svc.List(r.Context(), actorOf(r), h.kind, f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, total, f.Page))
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK)(h.svc.Get(r.Context(), actorOf(r), h.kind, id))
}

// Generate bills the payer for a month. An empty body bills the caller's own
// company or client for the current month.
func (h *InvoiceHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var in services.GenerateInput
	if r.ContentLength != 0 && !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, http.StatusCreated)(h.svc.Generate(r.Context(), actorOf(r), h.kind, in))
}

// Preview shows what Generate would charge right now without storing it.
func (h *InvoiceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := services.GenerateInput{
		CompanyID: cvt.Uint(q.Get("company_id")),
		ClientID:  cvt.Uint(q.Get("client_id")),
	}
	charge, err := h.svc.Preview(r.Context(), actorOf(r), h.kind, in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, charge)
}

func (h *InvoiceHandler) SetItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in services.ItemsInput
	if !h.decode(w, r, &in) {
		return
	}
	h.respond(w, r, http.StatusOK)(h.svc.SetItems(r.Context(), actorOf(r), h.kind, id, in))
}

func (h *InvoiceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r, http.StatusOK)(h.svc.Submit(r.Context(), actorOf(r), h.kind, id))
	}
}

func (h *InvoiceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if id, ok := h.id(w, r); ok {
		h.respond(w, r, http.StatusOK)(h.svc.Verify(r.Context(), actorOf(r), h.kind, id))
	}
}

func (h *InvoiceHandler) respond(w http.ResponseWriter, r *http.Request, status int) func(models.Invoice, error) {
	return func(inv models.Invoice, err error) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, status, inv)
	}
}
