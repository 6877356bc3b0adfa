package services

import (
	"fmt"
	"time"

	"bookden/internal/utils"
)

// OTP 用途，激活和重置密码各自独立，互不混用
const (
	OTPPurposeActivate = "activate"
	OTPPurposeReset    = "reset"
)

const (
	otpTTL         = 15 * time.Minute
	otpMaxAttempts = 5
	otpCodeLen     = 6
)

type otpEntry struct {
	Code     string
	Attempts int
}

// OTPService 基于本地 TTL 缓存的时间盒验证码服务。
// 同一 (purpose, email) 重新签发会作废旧码；验证成功即消费，一次性使用。
type OTPService struct {
	cache *utils.GlobalCache
}

func NewOTPService() *OTPService {
	return &OTPService{cache: utils.GetCache()}
}

func otpKey(purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, email)
}

// Issue 签发 6 位数字验证码，15 分钟内有效
func (s *OTPService) Issue(purpose, email string) string {
	code := utils.GenerateRandomCode(otpCodeLen)
	s.cache.Set(otpKey(purpose, email), &otpEntry{Code: code}, otpTTL)
	return code
}

// Verify 校验验证码。成功立即消费；连续错 5 次作废，防止暴力猜测。
func (s *OTPService) Verify(purpose, email, code string) bool {
	key := otpKey(purpose, email)
	val := s.cache.Get(key)
	if val == nil {
		return false
	}
	entry, ok := val.(*otpEntry)
	if !ok {
		return false
	}

	if entry.Code != code || code == "" {
		entry.Attempts++
		if entry.Attempts >= otpMaxAttempts {
			s.cache.Delete(key)
		}
		return false
	}

	s.cache.Delete(key)
	return true
}
