package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPIssueAndVerify(t *testing.T) {
	svc := NewOTPService()

	code := svc.Issue(OTPPurposeActivate, "a@example.com")
	require.Len(t, code, 6)

	assert.True(t, svc.Verify(OTPPurposeActivate, "a@example.com", code))
	// 一次性使用，二次校验失败
	assert.False(t, svc.Verify(OTPPurposeActivate, "a@example.com", code))
}

func TestOTPWrongCode(t *testing.T) {
	svc := NewOTPService()

	code := svc.Issue(OTPPurposeActivate, "b@example.com")
	assert.False(t, svc.Verify(OTPPurposeActivate, "b@example.com", "000000"))
	assert.False(t, svc.Verify(OTPPurposeActivate, "b@example.com", ""))
	// 错误尝试不消费正确的码
	assert.True(t, svc.Verify(OTPPurposeActivate, "b@example.com", code))
}

func TestOTPMaxAttempts(t *testing.T) {
	svc := NewOTPService()

	code := svc.Issue(OTPPurposeReset, "c@example.com")
	for i := 0; i < 5; i++ {
		assert.False(t, svc.Verify(OTPPurposeReset, "c@example.com", "999999"))
	}
	// 连续错 5 次后整个码作废
	assert.False(t, svc.Verify(OTPPurposeReset, "c@example.com", code))
}

func TestOTPReissueInvalidatesOld(t *testing.T) {
	svc := NewOTPService()

	old := svc.Issue(OTPPurposeActivate, "d@example.com")
	fresh := svc.Issue(OTPPurposeActivate, "d@example.com")

	if old != fresh {
		assert.False(t, svc.Verify(OTPPurposeActivate, "d@example.com", old))
	}
	assert.True(t, svc.Verify(OTPPurposeActivate, "d@example.com", fresh))
}

func TestOTPPurposesIsolated(t *testing.T) {
	svc := NewOTPService()

	activateCode := svc.Issue(OTPPurposeActivate, "e@example.com")
	// 激活码不能用于重置密码
	assert.False(t, svc.Verify(OTPPurposeReset, "e@example.com", activateCode))
	assert.True(t, svc.Verify(OTPPurposeActivate, "e@example.com", activateCode))
}

func TestOTPUnknownEmail(t *testing.T) {
	svc := NewOTPService()
	assert.False(t, svc.Verify(OTPPurposeActivate, "nobody@example.com", "123456"))
}
