package allocation

import "errors"

var (
	// ErrManifestLoad wraps every failure to fetch or parse a manifest.
	ErrManifestLoad = errors.New("manifest load failure")

	// ErrNotEligible is a negative lookup result, not a fault.
	ErrNotEligible = errors.New("address not eligible")

	// ErrInvalidAddress is returned for user input that is not a base58 32-byte address.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrDuplicateClaimant means the manifest lists the same claimant twice.
	ErrDuplicateClaimant = errors.New("duplicate claimant")
)
