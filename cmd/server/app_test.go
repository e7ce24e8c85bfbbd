package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/internal/db"
	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/middleware"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/internal/services"
)

const testPassword = "s3cret!"

type testApp struct {
	t   *testing.T
	app *App
	db  *gorm.DB
}

func setupE2E(t *testing.T, loginPerMinute int) *testApp {
	t.Helper()
	dbi, err := gorm.Open(sqlite.Open("file:e2e_"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(dbi); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Seed(dbi, db.SeedOptions{AdminEmail: "admin@archive.test", AdminPassword: testPassword}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	plan := models.Plan{PlanTerms: models.PlanTerms{
		Name:            "Pro",
		PlanFlags:       models.PlanFlags{CanShareDocument: true},
		MonthlyBill:     decimal.NewFromInt(50),
		BillingDuration: 1,
	}}
	if err := dbi.Create(&plan).Error; err != nil {
		t.Fatalf("plan: %v", err)
	}
	company := models.Company{Name: "Acme", PlanID: &plan.ID, Status: models.StatusActive}
	if err := dbi.Create(&company).Error; err != nil {
		t.Fatalf("company: %v", err)
	}
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatal(err)
	}
	for _, role := range []models.Role{models.RoleScanner, models.RoleManager} {
		u := models.User{
			Email:    string(role) + "@acme.test",
			Name:     string(role),
			Password: hash,
			Role:     role,
			Tenant:   models.Tenant{CompanyID: &company.ID},
		}
		if err := dbi.Create(&u).Error; err != nil {
			t.Fatalf("user %s: %v", role, err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	issuer, err := auth.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	revoker := auth.NewMemoryRevoker()
	m := metrics.New()
	g := policy.NewAuthGate(dbi, time.Minute, m, log)
	svc := services.New(services.Deps{DB: dbi, Gate: g, Log: log, Metrics: m})
	app := NewApp(AppDeps{
		DB:            dbi,
		Services:      svc,
		Gate:          g,
		Authenticator: auth.NewAuthenticator(issuer, revoker, svc.Users.Exists),
		Issuer:        issuer,
		Revoker:       revoker,
		Metrics:       m,
		Log:           log,
		LoginLimiter:  middleware.PerMinute(loginPerMinute),
	})
	return &testApp{t: t, app: app, db: dbi}
}

func (ta *testApp) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ta.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			ta.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) login(email string) string {
	ta.t.Helper()
	rec := ta.do("POST", "/login", "", map[string]string{"email": email, "password": testPassword})
	if rec.Code != http.StatusOK {
		ta.t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		ta.t.Fatalf("login response: %v %s", err, rec.Body.String())
	}
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestLoginAndMe(t *testing.T) {
	ta := setupE2E(t, 100)

	if rec := ta.do("GET", "/me", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /me = %d", rec.Code)
	}
	if rec := ta.do("POST", "/login", "", map[string]string{"email": "scanner@acme.test", "password": "wrong"}); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", rec.Code)
	}

	token := ta.login("Scanner@Acme.test")
	rec := ta.do("GET", "/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/me = %d %s", rec.Code, rec.Body.String())
	}
	var me struct {
		Role         string                     `json:"role"`
		Capabilities map[string]json.RawMessage `json:"capabilities"`
	}
	decodeBody(t, rec, &me)
	if me.Role != "scanner" {
		t.Errorf("role = %q", me.Role)
	}
	if _, ok := me.Capabilities["document:upload"]; !ok {
		t.Errorf("capabilities missing document:upload: %v", me.Capabilities)
	}
}

func TestDocumentPipelineOverHTTP(t *testing.T) {
	ta := setupE2E(t, 100)
	scanner := ta.login("scanner@acme.test")
	manager := ta.login("manager@acme.test")

	rec := ta.do("POST", "/documents", scanner, map[string]string{"title": "Lease", "tag_name": "contracts"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}
	decodeBody(t, rec, &doc)
	if doc.Status != "pending" {
		t.Errorf("status = %q", doc.Status)
	}

	rec = ta.do("POST", fmt.Sprintf("/documents/%d/publish", doc.ID), scanner, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("scanner publish = %d", rec.Code)
	}
	var denied struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	decodeBody(t, rec, &denied)
	if denied.Error != "forbidden" || denied.Details["action"] != "document:publish" {
		t.Errorf("denied body = %+v", denied)
	}

	rec = ta.do("POST", fmt.Sprintf("/documents/%d/route", doc.ID), scanner, map[string]string{"passed_to": "indexer"})
	if rec.Code != http.StatusOK {
		t.Fatalf("route = %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &doc)
	if doc.Status != "in_progress" {
		t.Errorf("status after route = %q", doc.Status)
	}

	rec = ta.do("GET", "/documents?status=in_progress", manager, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}
	var list struct {
		Items []struct {
			ID uint `json:"id"`
		} `json:"items"`
		Total int64 `json:"total"`
	}
	decodeBody(t, rec, &list)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != doc.ID {
		t.Errorf("list = %+v", list)
	}

	if rec := ta.do("GET", "/documents/abc", manager, nil); rec.Code != http.StatusNotFound {
		t.Errorf("bad id = %d", rec.Code)
	}
}

func TestPermissionsExplainsDenial(t *testing.T) {
	ta := setupE2E(t, 100)
	token := ta.login("scanner@acme.test")

	rec := ta.do("GET", "/permissions?action=report:view", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Allowed     bool   `json:"allowed"`
		Reason      string `json:"reason"`
		Explanation string `json:"explanation"`
	}
	decodeBody(t, rec, &resp)
	if resp.Allowed {
		t.Fatal("reports should be denied without the plan flag")
	}
	if resp.Reason != "your plan does not include reports" || resp.Explanation == "" {
		t.Errorf("resp = %+v", resp)
	}

	if rec := ta.do("GET", "/permissions?action=nope", token, nil); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown action = %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ta := setupE2E(t, 100)
	token := ta.login("admin@archive.test")

	if rec := ta.do("GET", "/plans", token, nil); rec.Code != http.StatusOK {
		t.Fatalf("plans = %d %s", rec.Code, rec.Body.String())
	}
	if rec := ta.do("POST", "/logout", token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", rec.Code)
	}
	if rec := ta.do("GET", "/plans", token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token = %d", rec.Code)
	}
}

func TestLoginRateLimited(t *testing.T) {
	ta := setupE2E(t, 2)
	body := map[string]string{"email": "scanner@acme.test", "password": "wrong"}
	for i := 0; i < 2; i++ {
		if rec := ta.do("POST", "/login", "", body); rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d = %d", i, rec.Code)
		}
	}
	rec := ta.do("POST", "/login", "", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt = %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	ta := setupE2E(t, 100)

	rec := ta.do("GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("healthz = %d %s", rec.Code, rec.Body.String())
	}

	rec = ta.do("GET", "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `archive_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`) {
		t.Errorf("healthz request not counted:\n%s", rec.Body.String())
	}
}
