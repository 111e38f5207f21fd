package allocation

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Manifest is a loaded merkle distributor claim tree. It is never mutated
// after Parse returns.
type Manifest struct {
	MerkleRoot    [32]byte
	MaxNumNodes   uint64
	MaxTotalClaim uint64
	TreeNodes     []Entry
}

// Entry is a single claimant's leaf in the tree.
//
// Proof elements are kept as raw slices: a malformed element is data the
// claim codec must reject, not something the loader silently repairs.
type Entry struct {
	Claimant solana.PublicKey
	Proof    [][]byte

	UnlockedStaker    uint64
	LockedStaker      uint64
	UnlockedSearcher  uint64
	LockedSearcher    uint64
	UnlockedValidator uint64
	LockedValidator   uint64
}

// UnlockedTotal sums the unlocked categories. Values are trusted to fit in 64 bits.
func (e *Entry) UnlockedTotal() uint64 {
	return e.UnlockedStaker + e.UnlockedSearcher + e.UnlockedValidator
}

// LockedTotal sums the locked categories. Values are trusted to fit in 64 bits.
func (e *Entry) LockedTotal() uint64 {
	return e.LockedStaker + e.LockedSearcher + e.LockedValidator
}

func (e *Entry) Total() uint64 {
	return e.UnlockedTotal() + e.LockedTotal()
}

// Find scans the tree for an exact claimant match.
func (m *Manifest) Find(address solana.PublicKey) (*Entry, bool) {
	for i := range m.TreeNodes {
		if m.TreeNodes[i].Claimant == address {
			return &m.TreeNodes[i], true
		}
	}
	return nil, false
}

// byteArray decodes JSON arrays of small integers, the shape the distributor
// CLI emits for keys and hashes.
type byteArray []byte

func (b *byteArray) UnmarshalJSON(data []byte) error {
	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

func (b byteArray) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

type manifestJSON struct {
	MerkleRoot    byteArray   `json:"merkle_root"`
	MaxNumNodes   uint64      `json:"max_num_nodes"`
	MaxTotalClaim uint64      `json:"max_total_claim"`
	TreeNodes     []entryJSON `json:"tree_nodes"`
}

type entryJSON struct {
	Claimant          byteArray   `json:"claimant"`
	Proof             []byteArray `json:"proof"`
	UnlockedStaker    uint64      `json:"total_unlocked_staker"`
	LockedStaker      uint64      `json:"total_locked_staker"`
	UnlockedSearcher  uint64      `json:"total_unlocked_searcher"`
	LockedSearcher    uint64      `json:"total_locked_searcher"`
	UnlockedValidator uint64      `json:"total_unlocked_validator"`
	LockedValidator   uint64      `json:"total_locked_validator"`
}

// Parse decodes manifest JSON. Claimants and the root must be 32 bytes;
// proof element lengths are left for the claim codec to enforce.
func Parse(data []byte) (*Manifest, error) {
	var raw manifestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifestLoad, err)
	}
	if len(raw.MerkleRoot) != 32 {
		return nil, fmt.Errorf("%w: merkle root must be 32 bytes, got %d", ErrManifestLoad, len(raw.MerkleRoot))
	}

	m := &Manifest{
		MaxNumNodes:   raw.MaxNumNodes,
		MaxTotalClaim: raw.MaxTotalClaim,
		TreeNodes:     make([]Entry, len(raw.TreeNodes)),
	}
	copy(m.MerkleRoot[:], raw.MerkleRoot)

	for i, node := range raw.TreeNodes {
		if len(node.Claimant) != solana.PublicKeyLength {
			return nil, fmt.Errorf("%w: tree node %d: claimant must be %d bytes, got %d",
				ErrManifestLoad, i, solana.PublicKeyLength, len(node.Claimant))
		}
		proof := make([][]byte, len(node.Proof))
		for j, p := range node.Proof {
			proof[j] = []byte(p)
		}
		m.TreeNodes[i] = Entry{
			Claimant:          solana.PublicKeyFromBytes(node.Claimant),
			Proof:             proof,
			UnlockedStaker:    node.UnlockedStaker,
			LockedStaker:      node.LockedStaker,
			UnlockedSearcher:  node.UnlockedSearcher,
			LockedSearcher:    node.LockedSearcher,
			UnlockedValidator: node.UnlockedValidator,
			LockedValidator:   node.LockedValidator,
		}
	}
	return m, nil
}
