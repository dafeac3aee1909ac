package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Note     *string `json:"note" validate:"omitempty,max=10"`
}

func TestValidateOk(t *testing.T) {
	err := Validate(sampleRequest{Email: "a@mail.com", Password: "secret123"})
	assert.NoError(t, err)
}

func TestValidateReportsFirstViolation(t *testing.T) {
	err := Validate(sampleRequest{Password: "secret123"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "'email'")
	assert.Contains(t, err.Error(), "required")
}

func TestValidateUsesJsonNames(t *testing.T) {
	err := Validate(sampleRequest{Email: "a@mail.com", Password: "abc"})
	assert.Error(t, err)
	// The wire name, not the Go field name.
	assert.Contains(t, err.Error(), "'password'")
	assert.NotContains(t, err.Error(), "Password")
}

func TestValidateEmailFormat(t *testing.T) {
	err := Validate(sampleRequest{Email: "not-an-email", Password: "secret123"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")
}

func TestValidateOptionalFields(t *testing.T) {
	err := Validate(sampleRequest{Email: "a@mail.com", Password: "secret123", Note: nil})
	assert.NoError(t, err)

	long := "this note is far too long"
	err = Validate(sampleRequest{Email: "a@mail.com", Password: "secret123", Note: &long})
	assert.Error(t, err)
}
