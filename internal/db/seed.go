package db

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/internal/models"
)

// DefaultPlanName is the plan created by Seed.
const DefaultPlanName = "Starter"

// SeedOptions configure Seed. The admin is skipped without a password.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
}

// Seed creates the platform admin and a default plan. It is idempotent.
func Seed(db *gorm.DB, opts SeedOptions) error {
	var plan models.Plan
	err := db.Where("name = ?", DefaultPlanName).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		plan = models.Plan{PlanTerms: models.PlanTerms{
			Name:             DefaultPlanName,
			PlanFlags:        models.PlanFlags{CanShareDocument: true, CanViewReports: true},
			TotalUsers:       5,
			StorageLimitGB:   10,
			DocsUploadLimit:  1000,
			PriceDescription: "$49.00 per month",
			MonthlyBill:      decimal.NewFromInt(49),
			BillingDuration:  1,
		}}
		if err := db.Create(&plan).Error; err != nil {
			return err
		}
		logrus.WithField("plan", plan.Name).Info("seeded default plan")
	} else if err != nil {
		return err
	}

	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		return nil
	}
	var admin models.User
	err = db.Where("email = ?", opts.AdminEmail).First(&admin).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	hash, err := auth.HashPassword(opts.AdminPassword)
	if err != nil {
		return err
	}
	admin = models.User{Email: opts.AdminEmail, Name: "Administrator", Password: hash, Role: models.RoleAdmin}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	logrus.WithField("email", admin.Email).Info("seeded admin user")
	return nil
}
