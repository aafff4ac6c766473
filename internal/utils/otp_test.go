package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestNewOTPCode_Shape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := NewOTPCode()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "non-digit in %q", code)
		}
		// Never zero-padded below the 6-digit floor.
		assert.NotEqual(t, byte('0'), code[0])
	}
}

func TestOTPCode_HashVerify(t *testing.T) {
	hash, err := HashOTPCode("123456", bcrypt.MinCost)
	require.NoError(t, err)

	assert.True(t, VerifyOTPCode(hash, "123456"))
	assert.False(t, VerifyOTPCode(hash, "654321"))
	assert.False(t, VerifyOTPCode(hash, ""))
}
