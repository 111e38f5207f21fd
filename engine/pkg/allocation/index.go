package allocation

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Index is a claimant-keyed view over a manifest for repeated lookups.
type Index struct {
	manifest  *Manifest
	byAddress map[solana.PublicKey]int
}

// NewIndex builds the lookup table, rejecting manifests that list a claimant twice.
func NewIndex(m *Manifest) (*Index, error) {
	byAddress := make(map[solana.PublicKey]int, len(m.TreeNodes))
	for i := range m.TreeNodes {
		claimant := m.TreeNodes[i].Claimant
		if prev, ok := byAddress[claimant]; ok {
			return nil, fmt.Errorf("%w: %s at tree nodes %d and %d", ErrDuplicateClaimant, claimant, prev, i)
		}
		byAddress[claimant] = i
	}
	return &Index{manifest: m, byAddress: byAddress}, nil
}

func (x *Index) Manifest() *Manifest {
	return x.manifest
}

func (x *Index) Len() int {
	return len(x.byAddress)
}

// Lookup returns the claimant's entry or ErrNotEligible.
func (x *Index) Lookup(address solana.PublicKey) (*Entry, error) {
	i, ok := x.byAddress[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotEligible, address)
	}
	return &x.manifest.TreeNodes[i], nil
}
