package utils

import (
	"crypto/rand"
	"strings"
)

// tokenSeparator 令牌明文中 token_id 与 secret 的分隔符，不能出现在随机串字符集中
const tokenSeparator = "."

// GenerateRandomString 生成指定长度的随机字符串
func GenerateRandomString(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_~"
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var result strings.Builder
	for _, bVal := range b {
		result.WriteByte(charset[int(bVal)%len(charset)])
	}
	return result.String(), nil
}

// JoinToken 拼接令牌明文 "<id>.<secret>"
func JoinToken(id, secret string) string {
	return id + tokenSeparator + secret
}

// SplitToken 拆分令牌明文，任一部分为空视为格式错误
func SplitToken(raw string) (id, secret string, ok bool) {
	id, secret, found := strings.Cut(strings.TrimSpace(raw), tokenSeparator)
	if !found || id == "" || secret == "" || strings.Contains(secret, tokenSeparator) {
		return "", "", false
	}
	return id, secret, true
}
