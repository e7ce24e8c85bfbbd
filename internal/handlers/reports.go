package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/services"
)

// ReportHandler serves the dashboard summary and the activity log.
type ReportHandler struct {
	responder
	reports  *services.ReportService
	activity *services.ActivityService
}

func NewReportHandler(reports *services.ReportService, activity *services.ActivityService, log logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{responder: newResponder(log), reports: reports, activity: activity}
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.reports.Summary(r.Context(), actorOf(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}

func (h *ReportHandler) Activity(w http.ResponseWriter, r *http.Request) {
	since, err := sinceParam(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	f := services.ActivityFilter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		Since:      since,
		Page:       pageOf(r),
	}
	out, total, err := h.activity.List(r.Context(), actorOf(r), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listOf(out, total, f.Page))
}
