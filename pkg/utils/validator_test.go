package utils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidIBAN(t *testing.T) {
	assert.True(t, ValidIBAN("DE89370400440532013000"))
	assert.True(t, ValidIBAN("gb82 west 1234 5698 7654 32"))
	assert.False(t, ValidIBAN("DE89370400440532013001"))
	assert.False(t, ValidIBAN("DE89"))
	assert.False(t, ValidIBAN("DE89-3704-0044-0532-0130-00"))
}

func TestValidateStruct(t *testing.T) {
	type input struct {
		Name string `validate:"required"`
		IBAN string `validate:"omitempty,iban"`
		Day  string `validate:"required,date"`
	}

	assert.NoError(t, ValidateStruct(input{Name: "a", Day: "2024-06-01"}))

	err := ValidateStruct(input{IBAN: "XX00", Day: "01/06/2024"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "Name failed required")
		assert.Contains(t, err.Error(), "IBAN failed iban")
		assert.Contains(t, err.Error(), "Day failed date")
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
	assert.Error(t, ValidateAmount(decimal.Zero))
	assert.Error(t, ValidateAmount(decimal.RequireFromString("-5")))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello\nworld", SanitizeString("  hel\x00lo\nworld\x7f "))
}
