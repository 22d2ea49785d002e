// Package validation содержит функции валидации входных данных.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MinPasswordLength минимальная длина пароля при регистрации.
const MinPasswordLength = 6

// IsValidEmail проверяет адрес по шаблону local@domain.tld.
func IsValidEmail(email string) bool {
	if email == "" {
		return false
	}
	return emailPattern.MatchString(email)
}

// IsBlank сообщает, что строка пуста или состоит из пробелов.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsValidPassword проверяет минимальную длину пароля в символах.
func IsValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= MinPasswordLength
}

// NormalizeEmail убирает пробелы по краям. Регистр сохраняется: поиск по email точный.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
