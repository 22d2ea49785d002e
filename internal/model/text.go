package model

import "strings"

// Language тег языка интерфейса.
type Language string

const (
	LanguageFR Language = "fr"
	LanguageEN Language = "en"
)

// DefaultLanguage язык витрины по умолчанию.
const DefaultLanguage = LanguageFR

// ParseLanguage разбирает тег языка. Неизвестные значения дают false.
func ParseLanguage(s string) (Language, bool) {
	switch Language(strings.ToLower(strings.TrimSpace(s))) {
	case LanguageFR:
		return LanguageFR, true
	case LanguageEN:
		return LanguageEN, true
	default:
		return "", false
	}
}

// Text двуязычная строка. Оба поля обязательны.
type Text struct {
	FR string `json:"fr" bson:"fr"`
	EN string `json:"en" bson:"en"`
}

// In возвращает строку на указанном языке.
func (t Text) In(lang Language) string {
	return Translate(lang, t)
}

// Translate разрешает двуязычную строку для языка. Для неизвестного языка используется французский.
func Translate(lang Language, t Text) string {
	if lang == LanguageEN {
		return t.EN
	}
	return t.FR
}

// TextList двуязычный список строк.
type TextList struct {
	FR []string
	EN []string
}

// In возвращает копию списка на указанном языке.
func (l TextList) In(lang Language) []string {
	src := l.FR
	if lang == LanguageEN {
		src = l.EN
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
