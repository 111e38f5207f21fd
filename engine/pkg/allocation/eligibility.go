package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Eligibility is the outcome of an address check. A missing allocation is
// reported with Eligible=false rather than an error.
type Eligibility struct {
	Address  solana.PublicKey
	Eligible bool
	Unlocked uint64
	Locked   uint64
	Total    uint64
}

// ParseAddress validates user-supplied input as a base58 account address.
func ParseAddress(input string) (solana.PublicKey, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	if len(s) < 32 || len(s) > 44 {
		return solana.PublicKey{}, fmt.Errorf("%w: length %d", ErrInvalidAddress, len(s))
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, fmt.Errorf("%w: decodes to %d bytes", ErrInvalidAddress, len(raw))
	}
	return solana.PublicKeyFromBytes(raw), nil
}

// CheckEligibility validates input and looks the address up in the index.
func CheckEligibility(index *Index, input string) (*Eligibility, error) {
	address, err := ParseAddress(input)
	if err != nil {
		return nil, err
	}
	entry, err := index.Lookup(address)
	if errors.Is(err, ErrNotEligible) {
		return &Eligibility{Address: address}, nil
	}
	if err != nil {
		return nil, err
	}
	return &Eligibility{
		Address:  address,
		Eligible: true,
		Unlocked: entry.UnlockedTotal(),
		Locked:   entry.LockedTotal(),
		Total:    entry.Total(),
	}, nil
}
