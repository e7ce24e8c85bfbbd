package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/services"
)

type UserHandler struct {
	responder
	svc *services.UserService
}

func NewUserHandler(svc *services.UserService, log logrus.FieldLogger) *UserHandler {
	return &UserHandler{responder: newResponder(log), svc: svc}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	out, err := h.svc.List(r.Context(), actorOf(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, int64(len(out)), p))
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.UserInput
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.svc.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, u)
}

type createDisputeRequest struct {
	CreateDispute bool `json:"create_dispute"`
}

func (h *UserHandler) SetCreateDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in createDisputeRequest
	if !h.decode(w, r, &in) {
		return
	}
	u, err := h.svc.SetCreateDispute(r.Context(), actorOf(r), id, in.CreateDispute)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}
