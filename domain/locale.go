package domain

import (
	"fmt"
	"strings"
)

// Locale is a supported display language.
type Locale string

const (
	LocaleArabic  Locale = "ar"
	LocaleEnglish Locale = "en"
)

// ParseLocale accepts "ar" or "en" in any case.
func ParseLocale(s string) (Locale, error) {
	switch Locale(strings.ToLower(strings.TrimSpace(s))) {
	case LocaleArabic:
		return LocaleArabic, nil
	case LocaleEnglish:
		return LocaleEnglish, nil
	}
	return "", fmt.Errorf("unsupported locale: %q", s)
}

func localized(l Locale, ar, en string) string {
	if l == LocaleArabic && ar != "" || en == "" {
		return ar
	}
	return en
}
