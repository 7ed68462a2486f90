package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Length caps for free-text ledger fields.
const (
	MaxVendorNameLen    = 200
	MaxReasonLen        = 500
	MaxReferenceLen     = 120
	MaxAccountHolderLen = 120
	MaxBankNameLen      = 120
	MaxAccountNumberLen = 34
	MaxIFSCLen          = 20
)

// SanitizeString trims the input, drops control characters and cuts it to
// at most maxLen bytes without splitting a UTF-8 sequence.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(input))

	if maxLen <= 0 || len(cleaned) <= maxLen {
		return cleaned
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
		cut--
	}
	return strings.TrimSpace(cleaned[:cut])
}

// SanitizeCode uppercases identifiers such as IFSC codes and strips spaces
// and dashes vendors paste in from bank statements.
func SanitizeCode(input string, maxLen int) string {
	code := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' {
			return -1
		}
		return unicode.ToUpper(r)
	}, input)
	return SanitizeString(code, maxLen)
}
