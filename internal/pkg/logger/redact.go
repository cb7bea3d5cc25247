package logger

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactPIIValue masks the value of a field named like an email or phone
// field, and any email address embedded in other values.
func redactPIIValue(key, val string) string {
	k := strings.ToLower(key)
	switch {
	case strings.Contains(k, "email"):
		return RedactEmail(val)
	case strings.Contains(k, "phone") || strings.Contains(k, "telephone"):
		return RedactPhone(val)
	}
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an email address for safe logging.
// "awa.diop@example.org" → "aw***@example.org"
// Short local parts (≤2 chars) are fully masked: "ab@example.org" → "***@example.org"
func RedactEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domain, "@") {
		return "***@***"
	}
	if r := []rune(local); len(r) > 2 {
		return string(r[:2]) + "***@" + domain
	}
	return "***@" + domain
}

// RedactPhone keeps only the last two digits of a phone number.
// "+221 77 123 45 67" → "***67"
func RedactPhone(phone string) string {
	var digits []rune
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) <= 2 {
		return "***"
	}
	return "***" + string(digits[len(digits)-2:])
}
