package tally

import (
	"math"
	"math/bits"
)

const (
	// QuorumBasisPoints is 33.33% of supply.
	QuorumBasisPoints = 3333

	// SignificantPowerUnits is 0.1% in ten-thousandths of a percent.
	SignificantPowerUnits = 1000
)

// mulDiv returns floor(a*b/d) with a 128-bit intermediate. ok is false when
// d is zero or the quotient does not fit in 64 bits.
func mulDiv(a, b, d uint64) (q uint64, ok bool) {
	if d == 0 {
		return 0, false
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return math.MaxUint64, false
	}
	q, _ = bits.Div64(hi, lo, d)
	return q, true
}

// BasisPoints returns floor(value*10000/denominator), capped at 10000, or 0
// for a zero denominator.
func BasisPoints(value, denominator uint64) uint64 {
	if denominator == 0 {
		return 0
	}
	if value >= denominator {
		return 10_000
	}
	q, _ := mulDiv(value, 10_000, denominator)
	return q
}

// Percent returns floor(value*10000/denominator)/100, so 2/3 is 66.66.
func Percent(value, denominator uint64) float64 {
	return float64(BasisPoints(value, denominator)) / 100
}

// reachesQuorum reports votes/supply >= 33.33% as integer basis points.
func reachesQuorum(votes, supply uint64) bool {
	return supply > 0 && BasisPoints(votes, supply) >= QuorumBasisPoints
}

// isSupermajority reports yes/total >= 2/3 exactly, as yes*3 >= total*2.
func isSupermajority(yes, total uint64) bool {
	if total == 0 {
		return false
	}
	yHi, yLo := bits.Mul64(yes, 3)
	tHi, tLo := bits.Mul64(total, 2)
	if yHi != tHi {
		return yHi > tHi
	}
	return yLo >= tLo
}

// quorumThreshold is ceil(supply*3333/10000).
func quorumThreshold(supply uint64) uint64 {
	hi, lo := bits.Mul64(supply, QuorumBasisPoints)
	lo, carry := bits.Add64(lo, 9_999, 0)
	hi += carry
	q, _ := bits.Div64(hi, lo, 10_000)
	return q
}
