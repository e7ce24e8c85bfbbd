package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/services"
)

// PlanHandler serves company plans and client plans.
type PlanHandler struct {
	responder
	plans       *services.PlanService
	clientPlans *services.ClientPlanService
}

func NewPlanHandler(plans *services.PlanService, clientPlans *services.ClientPlanService, log logrus.FieldLogger) *PlanHandler {
	return &PlanHandler{responder: newResponder(log), plans: plans, clientPlans: clientPlans}
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	plans, err := h.plans.List(r.Context(), actorOf(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(plans, int64(len(plans)), p))
}

func (h *PlanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	plan, err := h.plans.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var terms models.PlanTerms
	if !h.decode(w, r, &terms) {
		return
	}
	plan, err := h.plans.Create(r.Context(), actorOf(r), terms)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *PlanHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var terms models.PlanTerms
	if !h.decode(w, r, &terms) {
		return
	}
	plan, err := h.plans.Update(r.Context(), actorOf(r), id, terms)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.plans.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}

func (h *PlanHandler) ListClientPlans(w http.ResponseWriter, r *http.Request) {
	p := pageOf(r)
	plans, err := h.clientPlans.List(r.Context(), actorOf(r), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(plans, int64(len(plans)), p))
}

func (h *PlanHandler) GetClientPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	plan, err := h.clientPlans.Get(r.Context(), actorOf(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

// clientPlanRequest carries the company for platform callers; owners always
// create plans for their own company.
type clientPlanRequest struct {
	CompanyID uint `json:"company_id"`
	models.PlanTerms
}

func (h *PlanHandler) CreateClientPlan(w http.ResponseWriter, r *http.Request) {
	var in clientPlanRequest
	if !h.decode(w, r, &in) {
		return
	}
	plan, err := h.clientPlans.Create(r.Context(), actorOf(r), in.CompanyID, in.PlanTerms)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plan)
}

func (h *PlanHandler) UpdateClientPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	var terms models.PlanTerms
	if !h.decode(w, r, &terms) {
		return
	}
	plan, err := h.clientPlans.Update(r.Context(), actorOf(r), id, terms)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) DeleteClientPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := h.id(w, r)
	if !ok {
		return
	}
	if err := h.clientPlans.Delete(r.Context(), actorOf(r), id); err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.NoContent(w)
}
