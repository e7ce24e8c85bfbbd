package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/metrics"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/policy"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type env struct {
	t   *testing.T
	db  *gorm.DB
	svc *Services
	g   *policy.AuthGate
	m   *metrics.Metrics

	plan    models.Plan
	company models.Company
	cplan   models.ClientPlan
	client  models.Client
	users   map[models.Role]models.User
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// newEnv builds a company on the example plan (50 base, uploads 2 per 10,
// downloads 5 per 1000, shares 3 per 1000) with one user per role and a
// client with its own user.
func newEnv(t *testing.T, flags models.PlanFlags) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Plan{}, &models.Company{}, &models.ClientPlan{}, &models.Client{}, &models.User{},
		&models.Document{}, &models.Dispute{}, &models.Invoice{}, &models.InvoiceItem{}, &models.ActivityLog{},
	))

	log := logrus.New()
	log.SetOutput(io.Discard)
	m := metrics.New()
	g := policy.NewAuthGate(db, time.Minute, m, log)
	e := &env{t: t, db: db, g: g, m: m, users: map[models.Role]models.User{}}
	e.svc = New(Deps{DB: db, Gate: g, Log: log, Metrics: m, Now: func() time.Time { return testNow }})

	e.plan = models.Plan{PlanTerms: models.PlanTerms{
		Name:                 "Example",
		PlanFlags:            flags,
		MonthlyBill:          d("50"),
		BillingDuration:      1,
		UploadPricePerUnit:   d("2"),
		UploadUnitCount:      10,
		DownloadPricePerUnit: d("5"),
		DownloadUnitCount:    1000,
		SharePricePerUnit:    d("3"),
		ShareUnitCount:       1000,
	}}
	require.NoError(t, db.Create(&e.plan).Error)
	e.company = models.Company{Name: "Acme", PlanID: &e.plan.ID, Status: models.StatusActive}
	require.NoError(t, db.Create(&e.company).Error)
	e.cplan = models.ClientPlan{CompanyID: e.company.ID, PlanTerms: models.PlanTerms{Name: "Client", BillingDuration: 1, MonthlyBill: d("10")}}
	require.NoError(t, db.Create(&e.cplan).Error)
	e.client = models.Client{CompanyID: e.company.ID, Name: "Globex", ClientPlanID: &e.cplan.ID, Status: models.StatusActive}
	require.NoError(t, db.Create(&e.client).Error)

	for _, role := range models.Roles() {
		u := models.User{Email: string(role) + "@test", Name: string(role), Password: "x", Role: role, CreateDispute: role.DefaultCreateDispute()}
		switch role {
		case models.RoleAdmin:
		case models.RoleClient:
			u.Tenant = models.Tenant{CompanyID: &e.company.ID, ClientID: &e.client.ID}
		default:
			u.Tenant = models.Tenant{CompanyID: &e.company.ID}
		}
		require.NoError(t, db.Create(&u).Error)
		e.users[role] = u
	}
	return e
}

func (e *env) actor(role models.Role) policy.Actor {
	e.t.Helper()
	e.g.InvalidateAll()
	a, err := e.g.Actors.Resolve(context.Background(), e.users[role].ID)
	require.NoError(e.t, err)
	return a
}

func (e *env) reloadCompany() models.Company {
	e.t.Helper()
	var c models.Company
	require.NoError(e.t, e.db.First(&c, e.company.ID).Error)
	return c
}

func (e *env) activity(action string) int64 {
	var n int64
	e.db.Model(&models.ActivityLog{}).Where("action = ?", action).Count(&n)
	return n
}
