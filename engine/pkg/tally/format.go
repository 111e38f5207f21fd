package tally

import (
	"strconv"
	"strings"
)

// FormatTokenAmount renders base units with a comma-grouped whole part and
// up to three truncated fractional digits, e.g. "1,234.567".
func FormatTokenAmount(amount uint64, decimals uint8) string {
	if decimals == 0 {
		return groupThousands(strconv.FormatUint(amount, 10))
	}
	if decimals > 19 {
		decimals = 19
	}
	divisor := uint64(1)
	for range decimals {
		divisor *= 10
	}
	whole := amount / divisor
	frac := strconv.FormatUint(amount%divisor, 10)
	frac = strings.Repeat("0", int(decimals)-len(frac)) + frac
	if len(frac) > 3 {
		frac = frac[:3]
	}
	return groupThousands(strconv.FormatUint(whole, 10)) + "." + frac
}

// FormatPercentage renders votes/total as a two-decimal percentage, truncated.
func FormatPercentage(votes, total uint64) string {
	return strconv.FormatFloat(Percent(votes, total), 'f', 2, 64)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var sb strings.Builder
	head := len(digits) % 3
	if head > 0 {
		sb.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(digits[i : i+3])
	}
	return sb.String()
}
