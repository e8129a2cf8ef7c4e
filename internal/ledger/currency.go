package ledger

import (
	"strings"

	"golang.org/x/text/currency"
)

// NormalizeCurrency returns the canonical ISO 4217 code for code. Codes
// that are not ISO currencies, e.g. for crypto assets, are upper-cased
// and kept.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ""
	}

	unit, err := currency.ParseISO(code)
	if err != nil {
		return code
	}

	return unit.String()
}
