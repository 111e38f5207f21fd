package tally

// VotingPower is an allocation's share of total supply.
type VotingPower struct {
	Allocation uint64
	// Percent has four decimal places, truncated.
	Percent     float64
	Significant bool
}

// PowerOf computes floor(allocation*1e6/supply)/10000 percent, capped at 100.
// Holders of at least 0.1% of supply are significant.
func PowerOf(allocation, supply uint64) VotingPower {
	units, _ := mulDiv(allocation, 1_000_000, supply)
	if supply > 0 && allocation >= supply {
		units = 1_000_000
	}
	return VotingPower{
		Allocation:  allocation,
		Percent:     float64(units) / 10_000,
		Significant: units >= SignificantPowerUnits,
	}
}
