package utils

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestNewValidatorReportsJSONFieldNames(t *testing.T) {
	type payload struct {
		ChildID uint   `json:"child_id" validate:"required"`
		Note    string `json:"-" validate:"max=2"`
	}

	err := NewValidator().Struct(payload{Note: "long"})
	var validationErrors validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrors))
	require.Len(t, validationErrors, 2)
	require.Equal(t, "child_id", validationErrors[0].Field())
}
