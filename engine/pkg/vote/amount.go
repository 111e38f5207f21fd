package vote

import (
	"fmt"
	"math/bits"
	"strings"
)

// ParseAmount converts a decimal UI amount such as "1.5" into base units for
// a mint with the given decimals. Excess fractional digits are rejected
// rather than rounded.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if len(frac) > int(decimals) {
		return 0, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, s, decimals)
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))

	var v uint64
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
		}
		hi, lo := bits.Mul64(v, 10)
		lo, carry := bits.Add64(lo, uint64(r-'0'), 0)
		if hi != 0 || carry != 0 {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalidAmount, s)
		}
		v = lo
	}
	return v, nil
}
