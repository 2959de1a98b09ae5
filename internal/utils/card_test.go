package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaskCardNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"4111111111111111", "************1111"},
		{"5555555555554444", "************4444"},
		{"378282246310005", "***********0005"},
		{"1234", "1234"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskCardNumber(tt.input))
	}
}

func TestValidCardNumber(t *testing.T) {
	valid := []string{
		"4111111111111111",
		"5555555555554444",
		"378282246310005",
	}
	for _, number := range valid {
		assert.True(t, ValidCardNumber(number), number)
	}

	invalid := []string{
		"",
		"4111111111111112",  // bad check digit
		"41111111111",       // too short
		"41111111111111111111", // too long
		"4111-1111-1111-1111",  // non-digits
	}
	for _, number := range invalid {
		assert.False(t, ValidCardNumber(number), number)
	}
}

func TestValidCVV(t *testing.T) {
	assert.True(t, ValidCVV("123"))
	assert.True(t, ValidCVV("1234"))
	assert.False(t, ValidCVV("12"))
	assert.False(t, ValidCVV("12345"))
	assert.False(t, ValidCVV("12a"))
}

func TestValidExpiry(t *testing.T) {
	now := time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

	assert.True(t, ValidExpiry(6, 2026, now))
	assert.True(t, ValidExpiry(12, 2030, now))
	assert.False(t, ValidExpiry(5, 2026, now))
	assert.False(t, ValidExpiry(1, 2025, now))
	assert.False(t, ValidExpiry(0, 2027, now))
	assert.False(t, ValidExpiry(13, 2027, now))
	assert.False(t, ValidExpiry(1, 2099, now))
}
