package auth

import (
	"strings"
	"testing"

	"cityreport/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
	}{
		{"too short", "short1", false},
		{"no uppercase", "alllowercase123!", false},
		{"no lowercase", "ALLUPPERCASE123!", false},
		{"no digit", "NoDigitsHere!!x", false},
		{"no symbol", "NoSymbols12345", false},
		{"symbol outside the accepted set", "Brackets123#Only", false},
		{"deny-listed admin123", "Admin123!Secure", false},
		{"deny-listed password123 any case", "MyPassWord123!", false},
		{"deny-listed cityreport123", "xCityReport123!", false},
		{"strong", "Str0ng&Secure!", true},
		{"exactly twelve", "Abcdefgh1@xy", true},
		{"twelve bytes but ten characters", "Ab1@éééééé", false},
		{"twelve multibyte characters", "Ab1@éééééééé", true},
		{"exactly the bcrypt limit", "Ab1@" + strings.Repeat("x", MaxPasswordBytes-4), true},
		{"one byte over the bcrypt limit", "Ab1@" + strings.Repeat("x", MaxPasswordBytes-3), false},
		{"multibyte over the bcrypt limit", "Ab1@" + strings.Repeat("é", 35), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("Str0ng&Secure!")
	require.NoError(t, err)
	assert.NotEqual(t, "Str0ng&Secure!", hash)

	assert.NoError(t, h.Compare(hash, "Str0ng&Secure!"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), apperrors.ErrInvalidCredentials)

	err = h.Compare("not-a-bcrypt-hash", "whatever")
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestHasher_TooLongIsValidationError(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("A1@b", 21))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNewHasher_CostBounds(t *testing.T) {
	assert.Equal(t, DefaultBcryptCost, NewHasher(0).cost)
	assert.Equal(t, DefaultBcryptCost, NewHasher(99).cost)
	assert.Equal(t, 10, NewHasher(10).cost)
}
