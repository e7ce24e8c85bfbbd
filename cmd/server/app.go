package main

import (
	"context"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/httpx"
	"github.com/diewo77/go-archive/internal/handlers"
	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/middleware"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/services"
)

// AppDeps are the collaborators the router is built from.
type AppDeps struct {
	DB            *gorm.DB
	Services      *services.Services
	Gate          *policy.AuthGate
	Authenticator *auth.Authenticator
	Issuer        *auth.Issuer
	Revoker       auth.Revoker
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger
	LoginLimiter  *middleware.IPRateLimiter
}

// App is the main application handler that sets up all routes.
type App struct {
	mux     *http.ServeMux
	handler http.Handler
	deps    AppDeps
}

// NewApp creates a new application with all routes configured.
func NewApp(d AppDeps) *App {
	app := &App{mux: http.NewServeMux(), deps: d}
	app.setupRoutes()

	// Metrics sits right above the mux so it sees the matched pattern.
	var h http.Handler = app.mux
	if d.Metrics != nil {
		h = middleware.Metrics(d.Metrics)(h)
	}
	h = d.Authenticator.Middleware(h)
	h = middleware.Logging(d.Log)(h)
	h = middleware.Recover(d.Log)(h)
	app.handler = sentryhttp.New(sentryhttp.Options{Repanic: false}).Handle(h)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// require mounts h behind an action check.
func (a *App) require(pattern string, action gate.Action, h http.HandlerFunc) {
	a.mux.Handle(pattern, a.deps.Gate.Require(action)(h))
}

// authenticated mounts h for any signed-in user.
func (a *App) authenticated(pattern string, h http.HandlerFunc) {
	a.mux.Handle(pattern, a.deps.Gate.Authenticated(h))
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	d := a.deps
	svc := d.Services

	// Public
	ah := handlers.NewAuthHandler(svc.Users, d.Issuer, d.Revoker, d.Gate, d.Log)
	var login http.Handler = http.HandlerFunc(ah.Login)
	if d.LoginLimiter != nil {
		login = d.LoginLimiter.Limit(login)
	}
	a.mux.Handle("POST /login", login)
	a.mux.HandleFunc("GET /healthz", a.healthz)
	if d.Metrics != nil {
		a.mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Session
	a.authenticated("POST /logout", ah.Logout)
	a.authenticated("GET /me", ah.Me)
	a.authenticated("GET /permissions", ah.Permissions)

	// Documents
	dh := handlers.NewDocumentHandler(svc.Documents, d.Log)
	a.require("GET /documents", permission.ViewDocuments, dh.List)
	a.require("POST /documents", permission.UploadDocument, dh.Create)
	a.require("POST /documents/batch", permission.UploadDocument, dh.Batch)
	a.require("POST /documents/upload-url", permission.UploadDocument, dh.UploadURL)
	a.require("GET /documents/audit", permission.AuditDocuments, dh.Audit)
	a.require("GET /documents/{id}", permission.ViewDocuments, dh.Get)
	a.require("POST /documents/{id}/route", permission.RouteDocument, dh.Route)
	a.require("POST /documents/{id}/index", permission.IndexDocument, dh.Index)
	a.require("POST /documents/{id}/qa", permission.ReviewDocument, dh.QA)
	a.require("POST /documents/{id}/publish", permission.PublishDocument, dh.Publish)
	a.require("POST /documents/{id}/unpublish", permission.PublishDocument, dh.Unpublish)
	a.require("POST /documents/{id}/share", permission.ShareDocument, dh.Share)
	a.require("POST /documents/{id}/download", permission.ViewDocuments, dh.Download)
	a.require("POST /documents/{id}/chat", permission.ChatWithDocument, dh.Chat)

	// Plans
	ph := handlers.NewPlanHandler(svc.Plans, svc.ClientPlans, d.Log)
	a.require("GET /plans", permission.ManagePlans, ph.List)
	a.require("POST /plans", permission.ManagePlans, ph.Create)
	a.require("GET /plans/{id}", permission.ManagePlans, ph.Get)
	a.require("PUT /plans/{id}", permission.ManagePlans, ph.Update)
	a.require("DELETE /plans/{id}", permission.ManagePlans, ph.Delete)
	a.require("GET /client-plans", permission.ManageClientPlans, ph.ListClientPlans)
	a.require("POST /client-plans", permission.ManageClientPlans, ph.CreateClientPlan)
	a.require("GET /client-plans/{id}", permission.ManageClientPlans, ph.GetClientPlan)
	a.require("PUT /client-plans/{id}", permission.ManageClientPlans, ph.UpdateClientPlan)
	a.require("DELETE /client-plans/{id}", permission.ManageClientPlans, ph.DeleteClientPlan)

	// Subscribers
	sh := handlers.NewSubscriberHandler(svc.Companies, svc.Clients, d.Log)
	a.require("GET /companies", permission.ManageCompanies, sh.ListCompanies)
	a.require("POST /companies", permission.ManageCompanies, sh.CreateCompany)
	a.require("POST /companies/{id}/status", permission.ManageCompanies, sh.CompanyStatus)
	a.require("GET /clients", permission.ManageClients, sh.ListClients)
	a.require("POST /clients", permission.AddClient, sh.CreateClient)
	a.require("POST /clients/{id}/status", permission.ManageClients, sh.ClientStatus)

	// Invoices
	a.mountInvoices("/invoices", handlers.NewInvoiceHandler(svc.Invoices, models.InvoiceKindCompany, d.Log))
	a.mountInvoices("/client-invoices", handlers.NewInvoiceHandler(svc.Invoices, models.InvoiceKindClient, d.Log))

	// Disputes
	dsh := handlers.NewDisputeHandler(svc.Disputes, d.Log)
	a.require("GET /disputes", permission.ViewDisputes, dsh.List)
	a.require("POST /disputes", permission.CreateDispute, dsh.Create)
	a.require("POST /disputes/{id}/resolve", permission.ResolveDispute, dsh.Resolve)

	// Reports
	rh := handlers.NewReportHandler(svc.Reports, svc.Activity, d.Log)
	a.require("GET /activity-logs", permission.ViewActivityLogs, rh.Activity)
	a.require("GET /reports/summary", permission.ViewReports, rh.Summary)

	// Users
	uh := handlers.NewUserHandler(svc.Users, d.Log)
	a.require("GET /users", permission.ManageUsers, uh.List)
	a.require("POST /users", permission.ManageUsers, uh.Create)
	a.require("PUT /users/{id}/create-dispute", permission.ManageUsers, uh.SetCreateDispute)
}

// mountInvoices registers the invoice routes of one kind under prefix.
func (a *App) mountInvoices(prefix string, h *handlers.InvoiceHandler) {
	a.require("GET "+prefix, permission.ViewInvoices, h.List)
	a.require("POST "+prefix, permission.GenerateInvoice, h.Generate)
	a.require("GET "+prefix+"/preview", permission.ViewInvoices, h.Preview)
	a.require("GET "+prefix+"/{id}", permission.ViewInvoices, h.Get)
	a.require("PUT "+prefix+"/{id}/items", permission.EditInvoice, h.SetItems)
	a.require("POST "+prefix+"/{id}/submit", permission.SubmitInvoice, h.Submit)
	a.require("POST "+prefix+"/{id}/verify", permission.VerifyInvoice, h.Verify)
}

// healthz reports whether the database answers.
func (a *App) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	sqlDB, err := a.deps.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		a.deps.Log.WithError(err).Warn("health check failed")
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
