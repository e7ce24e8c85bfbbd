package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/services"
)

type DisputeHandler struct {
	responder
	svc *services.DisputeService
}

func NewDisputeHandler(svc *services.DisputeService, log logrus.FieldLogger) *DisputeHandler {
	return &DisputeHandler{responder: newResponder(log), svc: svc}
}

func (h *DisputeHandler) List(w http.ResponseWriter, r *http.Request) {
	f := services.DisputeFilter{Resolved: httpx.QueryBool(r, "resolved"), Page: pageOf(r)}
	out, total, err := h.svc.List(r.Context(), actorOf(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, total, f.Page))
}

func (h *DisputeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.DisputeInput
	if !h.decode(w, r, &in) {
		return
	}
	d, err := h.svc.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *DisputeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	d, err := h.svc.Resolve(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
