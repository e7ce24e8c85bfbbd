package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/go-archive/internal/billing"
	"github.com/diewo77/go-archive/internal/models"
	"github.com/diewo77/go-archive/internal/permission"
	"github.com/diewo77/go-archive/internal/policy"
	"github.com/diewo77/go-archive/validation"
)

// validateTerms checks limits, billing and pricing tiers of a plan.
func validateTerms(t *models.PlanTerms) error {
	t.Name = strings.TrimSpace(t.Name)
	v := make(validation.Violations)
	validation.Required("name", t.Name, v)
	validation.NonNegativeInt("number_of_clients", int64(t.NumberOfClients), v)
	validation.NonNegativeInt("total_users", int64(t.TotalUsers), v)
	validation.NonNegativeInt("storage_limit_gb", int64(t.StorageLimitGB), v)
	validation.NonNegativeInt("docs_upload_limit", int64(t.DocsUploadLimit), v)
	if t.BillingDuration < 1 {
		v.Add("billing_duration", "must_be_positive")
	}
	var perr *validation.Error
	if err := billing.ValidatePricing(t.Pricing()); errors.As(err, &perr) {
		for field, code := range perr.Violations {
			v.Add(field, code)
		}
	} else if err != nil {
		return err
	}
	return v.Err()
}

// PlanService manages company plans.
type PlanService struct {
	*core
}

// authorizeWrite limits plan changes to platform staff. Company owners hold
// every grant but must not edit the plan they are billed on.
func (s *PlanService) authorizeWrite(ctx context.Context, a policy.Actor) error {
	if err := s.authorize(ctx, a, permission.ManagePlans, nil); err != nil {
		return err
	}
	if !a.Platform() {
		return gateDenied(permission.ManagePlans, "only platform staff can change company plans")
	}
	return nil
}

func (s *PlanService) List(ctx context.Context, a policy.Actor, p Page) ([]models.Plan, error) {
	if err := s.authorize(ctx, a, permission.ManagePlans, nil); err != nil {
		return nil, err
	}
	var plans []models.Plan
	err := p.apply(s.db.WithContext(ctx)).Order("name").Find(&plans).Error
	return plans, err
}

func (s *PlanService) Get(ctx context.Context, a policy.Actor, id uint) (models.Plan, error) {
	if err := s.authorize(ctx, a, permission.ManagePlans, nil); err != nil {
		return models.Plan{}, err
	}
	var plan models.Plan
	err := s.db.WithContext(ctx).First(&plan, id).Error
	return plan, err
}

func (s *PlanService) Create(ctx context.Context, a policy.Actor, terms models.PlanTerms) (models.Plan, error) {
	if err := s.authorizeWrite(ctx, a); err != nil {
		return models.Plan{}, err
	}
	if err := validateTerms(&terms); err != nil {
		return models.Plan{}, err
	}
	plan := models.Plan{PlanTerms: terms}
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "plan.create", "plan", plan.ID, models.Tenant{}, map[string]any{"name": plan.Name})
	})
	return plan, err
}

// Update replaces the terms of a plan. Cached actors are dropped because
// their flags may have changed.
func (s *PlanService) Update(ctx context.Context, a policy.Actor, id uint, terms models.PlanTerms) (models.Plan, error) {
	if err := s.authorizeWrite(ctx, a); err != nil {
		return models.Plan{}, err
	}
	if err := validateTerms(&terms); err != nil {
		return models.Plan{}, err
	}
	var plan models.Plan
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&plan, id).Error; err != nil {
			return err
		}
		plan.PlanTerms = terms
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "plan.update", "plan", plan.ID, models.Tenant{}, map[string]any{"name": plan.Name})
	})
	if err == nil {
		s.gate.InvalidateAll()
	}
	return plan, err
}

// Delete removes a plan no company subscribes to. Otherwise it returns a
// *PlanInUseError listing the subscribers.
func (s *PlanService) Delete(ctx context.Context, a policy.Actor, id uint) error {
	if err := s.authorizeWrite(ctx, a); err != nil {
		return err
	}
	return s.tx(ctx, func(tx *gorm.DB) error {
		var plan models.Plan
		if err := tx.First(&plan, id).Error; err != nil {
			return err
		}
		var blockers []Blocker
		if err := tx.Model(&models.Company{}).Select("id, name").Where("plan_id = ?", id).Order("id").Scan(&blockers).Error; err != nil {
			return err
		}
		if len(blockers) > 0 {
			return &PlanInUseError{PlanID: id, Companies: blockers}
		}
		if err := tx.Delete(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "plan.delete", "plan", plan.ID, models.Tenant{}, map[string]any{"name": plan.Name})
	})
}

// ClientPlanService manages the plans a company offers its clients.
type ClientPlanService struct {
	*core
}

// companyOf returns the company a client plan operation applies to.
func companyOf(a policy.Actor, requested uint) (uint, error) {
	if a.Platform() {
		if requested == 0 {
			return 0, validation.Field("company_id", "required")
		}
		return requested, nil
	}
	if a.Tenant.CompanyID == nil {
		return 0, gorm.ErrRecordNotFound
	}
	return *a.Tenant.CompanyID, nil
}

func (s *ClientPlanService) List(ctx context.Context, a policy.Actor, p Page) ([]models.ClientPlan, error) {
	if err := s.authorize(ctx, a, permission.ManageClientPlans, nil); err != nil {
		return nil, err
	}
	var plans []models.ClientPlan
	err := p.apply(scoped(s.db.WithContext(ctx), a)).Order("name").Find(&plans).Error
	return plans, err
}

func (s *ClientPlanService) Get(ctx context.Context, a policy.Actor, id uint) (models.ClientPlan, error) {
	if err := s.authorize(ctx, a, permission.ManageClientPlans, nil); err != nil {
		return models.ClientPlan{}, err
	}
	var plan models.ClientPlan
	err := scoped(s.db.WithContext(ctx), a).First(&plan, id).Error
	return plan, err
}

func (s *ClientPlanService) Create(ctx context.Context, a policy.Actor, companyID uint, terms models.PlanTerms) (models.ClientPlan, error) {
	if err := s.authorize(ctx, a, permission.ManageClientPlans, nil); err != nil {
		return models.ClientPlan{}, err
	}
	cid, err := companyOf(a, companyID)
	if err != nil {
		return models.ClientPlan{}, err
	}
	if err := validateTerms(&terms); err != nil {
		return models.ClientPlan{}, err
	}
	plan := models.ClientPlan{CompanyID: cid, PlanTerms: terms}
	err = s.tx(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&models.Company{}, cid).Error; err != nil {
			return err
		}
		if err := tx.Create(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "client_plan.create", "client_plan", plan.ID, models.Tenant{CompanyID: &cid}, map[string]any{"name": plan.Name})
	})
	return plan, err
}

func (s *ClientPlanService) Update(ctx context.Context, a policy.Actor, id uint, terms models.PlanTerms) (models.ClientPlan, error) {
	if err := s.authorize(ctx, a, permission.ManageClientPlans, nil); err != nil {
		return models.ClientPlan{}, err
	}
	if err := validateTerms(&terms); err != nil {
		return models.ClientPlan{}, err
	}
	var plan models.ClientPlan
	err := s.tx(ctx, func(tx *gorm.DB) error {
		if err := scoped(tx, a).First(&plan, id).Error; err != nil {
			return err
		}
		plan.PlanTerms = terms
		if err := tx.Save(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "client_plan.update", "client_plan", plan.ID, models.Tenant{CompanyID: &plan.CompanyID}, map[string]any{"name": plan.Name})
	})
	if err == nil {
		s.gate.InvalidateAll()
	}
	return plan, err
}

func (s *ClientPlanService) Delete(ctx context.Context, a policy.Actor, id uint) error {
	if err := s.authorize(ctx, a, permission.ManageClientPlans, nil); err != nil {
		return err
	}
	return s.tx(ctx, func(tx *gorm.DB) error {
		var plan models.ClientPlan
		if err := scoped(tx, a).First(&plan, id).Error; err != nil {
			return err
		}
		var blockers []Blocker
		if err := tx.Model(&models.Client{}).Select("id, name").Where("client_plan_id = ?", id).Order("id").Scan(&blockers).Error; err != nil {
			return err
		}
		if len(blockers) > 0 {
			return &PlanInUseError{PlanID: id, Clients: blockers}
		}
		if err := tx.Delete(&plan).Error; err != nil {
			return err
		}
		return record(tx, a, "client_plan.delete", "client_plan", plan.ID, models.Tenant{CompanyID: &plan.CompanyID}, map[string]any{"name": plan.Name})
	})
}
