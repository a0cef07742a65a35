package ledger

import (
	"fmt"
	"strings"

	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
)

// Credit amounts are fixed-point with 6 fractional digits
// (microcredits). All arithmetic happens on int64 microcredits so
// float rounding can never corrupt a total.
const amountPrecision = 6

// parseAmount converts a decimal credit string to microcredits.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > amountPrecision {
		return 0, errs.Validation("amount %q has more than %d decimal places", s, amountPrecision)
	}
	frac += strings.Repeat("0", amountPrecision-len(frac))

	var value int64
	for _, digits := range []string{whole, frac} {
		for _, ch := range digits {
			if ch < '0' || ch > '9' {
				return 0, errs.Validation("invalid amount %q", s)
			}
			value = value*10 + int64(ch-'0')
		}
	}
	if neg {
		value = -value
	}
	return value, nil
}

// formatAmount renders microcredits as a decimal credit string with
// trailing zeros trimmed.
func formatAmount(micro int64) string {
	neg := micro < 0
	if neg {
		micro = -micro
	}

	whole := micro / 1_000_000
	frac := micro % 1_000_000

	out := fmt.Sprintf("%d", whole)
	if frac > 0 {
		out += strings.TrimRight(fmt.Sprintf(".%06d", frac), "0")
	}
	if neg {
		out = "-" + out
	}
	return out
}
