package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Query     string  `validate:"required"`
	Limit     int     `validate:"gte=0,lte=100"`
	Threshold float64 `validate:"gte=0,lte=1"`
}

func TestValidateStruct_Valid(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Query: "refunds", Limit: 10, Threshold: 0.5})
	assert.NoError(t, err)
}

func TestValidateStruct_FieldErrors(t *testing.T) {
	err := ValidateStruct(&sampleRequest{Limit: 500, Threshold: 2})
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	fields := GetValidationFields(err)
	assert.Contains(t, fields, "Query")
	assert.Contains(t, fields, "Limit")
	assert.Contains(t, fields, "Threshold")
	assert.Contains(t, fields["Query"], "required")
	assert.Contains(t, fields["Limit"], "at most")
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.Nil(t, GetValidationFields(errors.New("plain")))
}
