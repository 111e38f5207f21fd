// Package pda derives the program-owned addresses used by the merkle
// distributor: the distributor itself, per-claimant claim-status markers and
// associated token accounts.
package pda

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

const (
	// maxSeeds leaves room for the bump seed.
	maxSeeds      = solana.MaxSeeds - 1
	maxSeedLength = solana.MaxSeedLength

	distributorSeed = "MerkleDistributor"
	claimStatusSeed = "ClaimStatus"
)

var (
	ErrDerivationExhausted = errors.New("no off-curve address for any bump")
	ErrInvalidSeeds        = errors.New("invalid seeds")
)

type DerivedAddress struct {
	Address solana.PublicKey
	Bump    uint8
}

// Derive searches bumps from 255 down to 0 and returns the first off-curve
// address. The result is a pure function of seeds and program.
func Derive(seeds [][]byte, program solana.PublicKey) (DerivedAddress, error) {
	if len(seeds) > maxSeeds {
		return DerivedAddress{}, fmt.Errorf("%w: %d seeds, max %d", ErrInvalidSeeds, len(seeds), maxSeeds)
	}
	for i, s := range seeds {
		if len(s) > maxSeedLength {
			return DerivedAddress{}, fmt.Errorf("%w: seed %d is %d bytes, max %d", ErrInvalidSeeds, i, len(s), maxSeedLength)
		}
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		// Seeds are pre-validated, so an error here means the hash landed on the curve.
		address, err := solana.CreateProgramAddress(withBump, program)
		if err != nil {
			continue
		}
		return DerivedAddress{Address: address, Bump: uint8(bump)}, nil
	}
	return DerivedAddress{}, ErrDerivationExhausted
}

// Distributor derives the distributor for a mint and airdrop version.
func Distributor(program, mint solana.PublicKey, version uint64) (DerivedAddress, error) {
	v := make([]byte, 8)
	binary.LittleEndian.PutUint64(v, version)
	return Derive([][]byte{[]byte(distributorSeed), mint[:], v}, program)
}

// ClaimStatus derives the marker account whose existence records a claim.
func ClaimStatus(program, claimant, distributor solana.PublicKey) (DerivedAddress, error) {
	return Derive([][]byte{[]byte(claimStatusSeed), claimant[:], distributor[:]}, program)
}

// AssociatedTokenAccount derives the canonical token account for owner and
// mint. Owner may itself be a derived address.
func AssociatedTokenAccount(owner, mint solana.PublicKey) (DerivedAddress, error) {
	return Derive([][]byte{owner[:], solana.TokenProgramID[:], mint[:]}, solana.SPLAssociatedTokenAccountProgramID)
}
