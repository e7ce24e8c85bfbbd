package validation_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diewo77/go-archive/validation"
)

func TestViolations_Err(t *testing.T) {
	v := validation.Violations{}
	if v.Err() != nil {
		t.Fatal("empty violations should not produce an error")
	}

	validation.Required("title", "  ", v)
	validation.NonNegativeInt("uploads", -1, v)
	err := v.Err()
	if !errors.Is(err, validation.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %T", err)
	}
	if verr.Violations["title"] != "required" || verr.Violations["uploads"] != "must_not_be_negative" {
		t.Errorf("unexpected violations %v", verr.Violations)
	}
	if err.Error() != "validation failed: title: required, uploads: must_not_be_negative" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestViolations_FirstCodeWins(t *testing.T) {
	v := validation.Violations{}
	v.Add("rate", "must_not_be_negative")
	v.Add("rate", "required")
	if v["rate"] != "must_not_be_negative" {
		t.Errorf("got %q", v["rate"])
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", ""},
		{"100", ""},
		{"12.5", ""},
		{"-1", "must_not_be_negative"},
		{"100.01", "out_of_range"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := validation.Violations{}
			validation.Percent("tax", decimal.RequireFromString(tt.in), v)
			if v["tax"] != tt.want {
				t.Errorf("got %q, want %q", v["tax"], tt.want)
			}
		})
	}
}

func TestOneOf(t *testing.T) {
	v := validation.Violations{}
	validation.OneOf("status", "active", []string{"active", "pending"}, v)
	validation.OneOf("role", "janitor", []string{"owner"}, v)
	if _, ok := v["status"]; ok {
		t.Error("active is allowed")
	}
	if v["role"] != "invalid_choice" {
		t.Errorf("got %q", v["role"])
	}
}

func TestField(t *testing.T) {
	err := validation.Field("unit_count", "required_when_priced")
	if !errors.Is(err, validation.ErrInvalid) {
		t.Fatal("Field should build a validation error")
	}
}
