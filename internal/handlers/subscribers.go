package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/services"
)

// SubscriberHandler serves companies and clients.
type SubscriberHandler struct {
	responder
	companies *services.CompanyService
	clients   *services.ClientService
}

func NewSubscriberHandler(companies *services.CompanyService, clients *services.ClientService, log logrus.FieldLogger) *SubscriberHandler {
	return &SubscriberHandler{responder: newResponder(log), companies: companies, clients: clients}
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *SubscriberHandler) ListCompanies(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	out, err := h.companies.List(r.Context(), actorOf(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, int64(len(out)), p))
}

func (h *SubscriberHandler) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var in services.SubscriberInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.companies.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *SubscriberHandler) CompanyStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in statusRequest
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.companies.SetStatus(r.Context(), actorOf(r), id, in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *SubscriberHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	out, err := h.clients.List(r.Context(), actorOf(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, int64(len(out)), p))
}

func (h *SubscriberHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var in services.SubscriberInput
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.clients.Create(r.Context(), actorOf(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *SubscriberHandler) ClientStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var in statusRequest
	if !h.decode(w, r, &in) {
		return
	}
	c, err := h.clients.SetStatus(r.Context(), actorOf(r), id, in.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}
