package util

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	passwordCost = 8
	// bcrypt 只使用前 72 字节
	maxPasswordBytes = 72
)

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPassword 生成账号密码的 bcrypt 哈希，超长密码直接拒绝而不是截断
func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 空哈希（账号未设置密码）一律不通过
func CheckPassword(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
