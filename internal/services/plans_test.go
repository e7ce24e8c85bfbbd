package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/go-archive/gate"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/validation"
)

func TestPlanValidation(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()

	_, err := e.svc.Plans.Create(ctx, e.actor(models.RoleAdmin), models.PlanTerms{
		Name:               "  ",
		BillingDuration:    0,
		UploadPricePerUnit: d("2"),
		PlanFlags:          models.PlanFlags{NumberOfClients: -1},
	})
	var verr *validation.Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, validation.Violations{
		"name":              "required",
		"billing_duration":  "must_be_positive",
		"number_of_clients": "must_not_be_negative",
		"upload_unit_count": "required_when_priced",
	}, verr.Violations)

	plan, err := e.svc.Plans.Create(ctx, e.actor(models.RoleAdmin), models.PlanTerms{Name: " Pro ", BillingDuration: 12, MonthlyBill: d("99")})
	require.NoError(t, err)
	assert.Equal(t, "Pro", plan.Name)
	assert.EqualValues(t, 1, e.activity("plan.create"))

	_, err = e.svc.Plans.Create(ctx, e.actor(models.RoleManager), models.PlanTerms{Name: "x", BillingDuration: 1})
	assert.ErrorIs(t, err, gate.ErrForbidden)
}

func TestPlanDeleteInUse(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	admin := e.actor(models.RoleAdmin)

	err := e.svc.Plans.Delete(ctx, admin, e.plan.ID)
	var inUse *PlanInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, []Blocker{{ID: e.company.ID, Name: "Acme"}}, inUse.Companies)

	spare, err := e.svc.Plans.Create(ctx, admin, models.PlanTerms{Name: "Spare", BillingDuration: 1})
	require.NoError(t, err)
	require.NoError(t, e.svc.Plans.Delete(ctx, admin, spare.ID))
	_, err = e.svc.Plans.Get(ctx, admin, spare.ID)
	assert.Error(t, err)
}

func TestPlanUpdateRefreshesFlags(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()

	scanner, err := e.g.Actors.Resolve(ctx, e.users[models.RoleScanner].ID)
	require.NoError(t, err)
	assert.False(t, scanner.Subject.Plan.CanShareDocument)

	terms := e.plan.PlanTerms
	terms.CanShareDocument = true
	_, err = e.svc.Plans.Update(ctx, e.actor(models.RoleAdmin), e.plan.ID, terms)
	require.NoError(t, err)

	scanner, err = e.g.Actors.Resolve(ctx, e.users[models.RoleScanner].ID)
	require.NoError(t, err)
	assert.True(t, scanner.Subject.Plan.CanShareDocument)
}

func TestClientPlans(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	owner := e.actor(models.RoleOwner)

	plan, err := e.svc.ClientPlans.Create(ctx, owner, 999, models.PlanTerms{Name: "Basic", BillingDuration: 1})
	require.NoError(t, err)
	assert.Equal(t, e.company.ID, plan.CompanyID, "owners create plans for their own company")

	plans, err := e.svc.ClientPlans.List(ctx, owner, Page{})
	require.NoError(t, err)
	assert.Len(t, plans, 2)

	err = e.svc.ClientPlans.Delete(ctx, owner, e.cplan.ID)
	var inUse *PlanInUseError
	require.True(t, errors.As(err, &inUse))
	assert.Equal(t, []Blocker{{ID: e.client.ID, Name: "Globex"}}, inUse.Clients)

	require.NoError(t, e.svc.ClientPlans.Delete(ctx, owner, plan.ID))

	_, err = e.svc.ClientPlans.List(ctx, e.actor(models.RoleAdmin), Page{})
	assert.ErrorIs(t, err, gate.ErrForbidden)
}

func TestCompanyOwnerCannotChangePlans(t *testing.T) {
	e := newEnv(t, models.PlanFlags{})
	ctx := context.Background()
	owner := e.actor(models.RoleOwner)

	terms := e.plan.PlanTerms
	terms.MonthlyBill = d("0")
	terms.CanAddClient = true
	terms.NumberOfClients = 1000
	_, err := e.svc.Plans.Update(ctx, owner, e.plan.ID, terms)
	var denied *gate.DeniedError
	require.True(t, errors.As(err, &denied), "got %v", err)
	assert.Equal(t, "only platform staff can change company plans", denied.Reason)

	_, err = e.svc.Plans.Create(ctx, owner, models.PlanTerms{Name: "Free", BillingDuration: 1})
	assert.ErrorIs(t, err, gate.ErrForbidden)
	assert.ErrorIs(t, e.svc.Plans.Delete(ctx, owner, e.plan.ID), gate.ErrForbidden)

	var stored models.Plan
	require.NoError(t, e.db.First(&stored, e.plan.ID).Error)
	assertDecimal(t, "50", stored.MonthlyBill, "plan unchanged")
	assert.False(t, stored.CanAddClient)
}
