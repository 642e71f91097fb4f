package utils

import (
	"strings"
	"testing"
)

func TestValidateStructRequiredNonStringKinds(t *testing.T) {
	type req struct {
		ConsultantID uint    `validate:"required"`
		Amount       float64 `validate:"required"`
	}

	if err := ValidateStruct(&req{ConsultantID: 7, Amount: 25.50}); err != nil {
		t.Fatalf("populated numeric fields rejected: %v", err)
	}

	err := ValidateStruct(&req{Amount: 25.50})
	if err == nil || !strings.Contains(err.Error(), "ConsultantID") {
		t.Fatalf("zero uint field accepted, err = %v", err)
	}
	err = ValidateStruct(&req{ConsultantID: 7})
	if err == nil || !strings.Contains(err.Error(), "Amount") {
		t.Fatalf("zero float field accepted, err = %v", err)
	}
}

func TestValidateStructRequiredString(t *testing.T) {
	type req struct {
		Status string `validate:"required"`
	}
	if err := ValidateStruct(&req{Status: "online"}); err != nil {
		t.Fatalf("populated string rejected: %v", err)
	}
	if err := ValidateStruct(&req{}); err == nil {
		t.Fatal("empty string accepted")
	}
}

func TestValidateStructEmailShape(t *testing.T) {
	type req struct {
		Email string `validate:"required,email"`
	}
	if err := ValidateStruct(&req{Email: "user@example.com"}); err != nil {
		t.Fatalf("valid email rejected: %v", err)
	}
	if err := ValidateStruct(&req{Email: "not-an-email"}); err == nil {
		t.Fatal("malformed email accepted")
	}
}
