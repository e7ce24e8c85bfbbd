package db

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/go-archive/auth"
	"github.com/diewo77/go-archive/internal/config"
	"github.com/diewo77/go-archive/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	d, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(d); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return d
}

func TestSeedIdempotent(t *testing.T) {
	d := newTestDB(t)
	opts := SeedOptions{AdminEmail: "admin@example.com", AdminPassword: "s3cret!"}
	for i := 0; i < 2; i++ {
		if err := Seed(d, opts); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	var plans, users int64
	d.Model(&models.Plan{}).Count(&plans)
	d.Model(&models.User{}).Count(&users)
	if plans != 1 || users != 1 {
		t.Fatalf("expected 1 plan and 1 user, got %d and %d", plans, users)
	}
	var admin models.User
	if err := d.First(&admin).Error; err != nil {
		t.Fatal(err)
	}
	if admin.Role != models.RoleAdmin {
		t.Errorf("role = %s", admin.Role)
	}
	if !auth.CheckPassword(admin.Password, "s3cret!") {
		t.Error("password should be hashed with bcrypt")
	}
}

func TestSeedWithoutPasswordSkipsAdmin(t *testing.T) {
	d := newTestDB(t)
	if err := Seed(d, SeedOptions{AdminEmail: "admin@example.com"}); err != nil {
		t.Fatal(err)
	}
	var users int64
	d.Model(&models.User{}).Count(&users)
	if users != 0 {
		t.Errorf("users = %d", users)
	}
}

func TestOpenSQLiteAndSetup(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared"},
		App:      config.AppConfig{Seed: true},
	}
	d, err := Open(cfg.Database, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Setup(d, cfg); err != nil {
		t.Fatal(err)
	}
	if !d.Migrator().HasTable(&models.InvoiceItem{}) {
		t.Error("invoice_items should exist")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}, Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNormalizeDSN(t *testing.T) {
	cases := map[string]string{
		"":                                       "",
		" 'postgres://u:p@h/db' ":                "postgres://u:p@h/db",
		"host=h   user=u  dbname=d":              "host=h user=u dbname=d sslmode=disable",
		"host=h user=u dbname=d sslmode=require": "host=h user=u dbname=d sslmode=require",
		"garbage":                                "garbage",
	}
	for in, want := range cases {
		if got := NormalizeDSN(in); got != want {
			t.Errorf("NormalizeDSN(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskDSN(t *testing.T) {
	if got := MaskDSN("host=h password=secret dbname=d"); got != "host=h password=*** dbname=d" {
		t.Errorf("kv: %q", got)
	}
	if got := MaskDSN("postgres://u:secret@h:5432/d"); got != "postgres://u:***@h:5432/d" {
		t.Errorf("url: %q", got)
	}
}
