package utils

import (
	"crypto/rand"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword 使用 bcrypt 生成密码哈希
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash 校验明文密码与哈希是否匹配
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

const shortIDLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandShortID 生成指定长度的短随机 ID（用于 Bid/Cid 等对外标识）
func RandShortID(n int) string {
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(shortIDLetters))))
		if err != nil {
			// crypto/rand 在正常平台上不会失败，兜底用固定字符
			b[i] = shortIDLetters[0]
			continue
		}
		b[i] = shortIDLetters[idx.Int64()]
	}
	return string(b)
}

// GenerateRandomCode 生成指定位数的数字验证码（激活/重置通用）
func GenerateRandomCode(n int) string {
	const digits = "0123456789"
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			b[i] = '0'
			continue
		}
		b[i] = digits[idx.Int64()]
	}
	return string(b)
}
