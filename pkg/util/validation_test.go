package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name     string  `json:"name" validate:"required,max=5"`
	Email    string  `json:"email" validate:"required,email"`
	Priority string  `json:"priority" validate:"omitempty,oneof=high medium low"`
	Company  *string `json:"company_id" validate:"omitempty,uuid"`
	Internal string  `json:"-" validate:"omitempty,max=1"`
}

func TestValidateStruct(t *testing.T) {
	badID := "nope"

	err := ValidateStruct(sampleRequest{Name: "toolong", Email: "x", Priority: "urgent", Company: &badID})
	require.Error(t, err)

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, CodeValidation, domainErr.Code)
	assert.Equal(t, "must be at most 5 characters", domainErr.Details["name"])
	assert.Equal(t, "must be a valid email address", domainErr.Details["email"])
	assert.Equal(t, "must be one of: high medium low", domainErr.Details["priority"])
	assert.Equal(t, "must be a valid id", domainErr.Details["company_id"])
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, ValidateStruct(sampleRequest{Name: "acme", Email: "it@acme.test"}))
}

func TestValidateStruct_Required(t *testing.T) {
	err := ValidateStruct(sampleRequest{})

	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "this field is required", domainErr.Details["name"])
	assert.Equal(t, "this field is required", domainErr.Details["email"])
}
