// internal/utils/validator_test.go
package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedPayload struct {
	Name string `validate:"required,product_name,max=255"`
}

func TestProductNameValidation(t *testing.T) {
	assert.NoError(t, ValidateStruct(&namedPayload{Name: "Udi's Bread!"}))
	assert.Error(t, ValidateStruct(&namedPayload{Name: ""}))

	// Whitespace passes "required" but normalizes to nothing.
	err := ValidateStruct(&namedPayload{Name: "   "})
	require.Error(t, err)

	details := GetValidationErrors(err)
	require.Len(t, details, 1)
	assert.Equal(t, "product_name", details[0].Tag)
}

type credentialsPayload struct {
	Username string `validate:"required,username"`
	Password string `validate:"required,strong_password"`
}

func TestCredentialValidation(t *testing.T) {
	assert.NoError(t, ValidateStruct(&credentialsPayload{
		Username: "alice_01",
		Password: "Sup3r-secret!",
	}))

	assert.Error(t, ValidateStruct(&credentialsPayload{
		Username: "no spaces allowed",
		Password: "Sup3r-secret!",
	}))
	assert.Error(t, ValidateStruct(&credentialsPayload{
		Username: "alice_01",
		Password: "alllowercase",
	}))
}
