package ledger

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
)

const (
	mintAccountLen  = 82
	mintSupplyOff   = 36
	mintDecimalsOff = 44

	tokenAccountLen = 165
	tokenAmountOff  = 64
)

// Mint is the subset of an SPL mint account the engine reads.
type Mint struct {
	Supply   uint64
	Decimals uint8
}

// DecodeMint reads supply and decimals from SPL mint account data.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) < mintAccountLen {
		return nil, fmt.Errorf("%w: mint data is %d bytes, want %d", ErrAccountDecode, len(data), mintAccountLen)
	}
	decoder := bin.NewBinDecoder(data[mintSupplyOff:])
	supply, err := decoder.ReadUint64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("%w: supply: %w", ErrAccountDecode, err)
	}
	return &Mint{Supply: supply, Decimals: data[mintDecimalsOff]}, nil
}

// DecodeTokenAmount reads the balance of an SPL token account.
func DecodeTokenAmount(data []byte) (uint64, error) {
	if len(data) < tokenAccountLen {
		return 0, fmt.Errorf("%w: token account data is %d bytes, want %d", ErrAccountDecode, len(data), tokenAccountLen)
	}
	amount, err := bin.NewBinDecoder(data[tokenAmountOff:]).ReadUint64(bin.LE)
	if err != nil {
		return 0, fmt.Errorf("%w: amount: %w", ErrAccountDecode, err)
	}
	return amount, nil
}
