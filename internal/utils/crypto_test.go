package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPasswordHash("secret123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("secret123", "not-a-hash"))
}

func TestRandShortID(t *testing.T) {
	id := RandShortID(8)
	assert.Len(t, id, 8)

	for _, r := range id {
		assert.Contains(t, shortIDLetters, string(r))
	}

	// 碰撞概率极低，两次生成应不同
	assert.NotEqual(t, RandShortID(8), RandShortID(8))
}

func TestGenerateRandomCode(t *testing.T) {
	code := GenerateRandomCode(6)
	assert.Len(t, code, 6)
	assert.NotContains(t, code, " ")

	for _, r := range code {
		assert.True(t, strings.ContainsRune("0123456789", r), "验证码只含数字: %s", code)
	}
}
