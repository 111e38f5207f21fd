package codec

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// ClaimDiscriminator tags the distributor's new_claim instruction.
var ClaimDiscriminator = [8]byte{0x4e, 0xb1, 0x62, 0x7b, 0xd2, 0x15, 0xbb, 0x53}

var (
	ErrInvalidProofElement  = errors.New("proof element must be 32 bytes")
	ErrInvalidDiscriminator = errors.New("unexpected instruction discriminator")
	ErrTrailingBytes        = errors.New("trailing bytes after instruction")
)

// ClaimInstruction is the payload of the distributor claim.
type ClaimInstruction struct {
	AmountUnlocked uint64
	AmountLocked   uint64
	Proof          [][32]byte
}

// NewClaimInstruction validates proof element lengths. Elements are never
// padded or truncated.
func NewClaimInstruction(amountUnlocked, amountLocked uint64, proof [][]byte) (*ClaimInstruction, error) {
	out := make([][32]byte, len(proof))
	for i, el := range proof {
		if len(el) != 32 {
			return nil, fmt.Errorf("%w: element %d is %d bytes", ErrInvalidProofElement, i, len(el))
		}
		copy(out[i][:], el)
	}
	return &ClaimInstruction{
		AmountUnlocked: amountUnlocked,
		AmountLocked:   amountLocked,
		Proof:          out,
	}, nil
}

// Encode produces discriminator ‖ u64le unlocked ‖ u64le locked ‖ u32le n ‖ proof.
func (ix *ClaimInstruction) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.Grow(8 + 8 + 8 + 4 + 32*len(ix.Proof))
	if err := ix.MarshalWithEncoder(bin.NewBinEncoder(buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (ix *ClaimInstruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteBytes(ClaimDiscriminator[:], false); err != nil {
		return fmt.Errorf("failed to write discriminator: %w", err)
	}
	if err := encoder.WriteUint64(ix.AmountUnlocked, bin.LE); err != nil {
		return fmt.Errorf("failed to write amount unlocked: %w", err)
	}
	if err := encoder.WriteUint64(ix.AmountLocked, bin.LE); err != nil {
		return fmt.Errorf("failed to write amount locked: %w", err)
	}
	if err := encoder.WriteUint32(uint32(len(ix.Proof)), bin.LE); err != nil {
		return fmt.Errorf("failed to write proof length: %w", err)
	}
	for i := range ix.Proof {
		if err := encoder.WriteBytes(ix.Proof[i][:], false); err != nil {
			return fmt.Errorf("failed to write proof element %d: %w", i, err)
		}
	}
	return nil
}

func (ix *ClaimInstruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	disc, err := decoder.ReadBytes(len(ClaimDiscriminator))
	if err != nil {
		return fmt.Errorf("failed to read discriminator: %w", err)
	}
	if !bytes.Equal(disc, ClaimDiscriminator[:]) {
		return fmt.Errorf("%w: %x", ErrInvalidDiscriminator, disc)
	}
	if ix.AmountUnlocked, err = decoder.ReadUint64(bin.LE); err != nil {
		return fmt.Errorf("failed to read amount unlocked: %w", err)
	}
	if ix.AmountLocked, err = decoder.ReadUint64(bin.LE); err != nil {
		return fmt.Errorf("failed to read amount locked: %w", err)
	}
	n, err := decoder.ReadUint32(bin.LE)
	if err != nil {
		return fmt.Errorf("failed to read proof length: %w", err)
	}
	if int(n) > decoder.Remaining()/32 {
		return fmt.Errorf("proof length %d exceeds remaining %d bytes", n, decoder.Remaining())
	}
	ix.Proof = make([][32]byte, n)
	for i := range ix.Proof {
		el, err := decoder.ReadBytes(32)
		if err != nil {
			return fmt.Errorf("failed to read proof element %d: %w", i, err)
		}
		copy(ix.Proof[i][:], el)
	}
	return nil
}

// DecodeClaimInstruction is the inverse of Encode and rejects trailing data.
func DecodeClaimInstruction(data []byte) (*ClaimInstruction, error) {
	decoder := bin.NewBinDecoder(data)
	ix := &ClaimInstruction{}
	if err := ix.UnmarshalWithDecoder(decoder); err != nil {
		return nil, err
	}
	if rem := decoder.Remaining(); rem > 0 {
		return nil, fmt.Errorf("%w: %d", ErrTrailingBytes, rem)
	}
	return ix, nil
}
