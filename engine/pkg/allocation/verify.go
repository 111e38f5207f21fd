package allocation

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
)

const (
	leafPrefix         = 0x00
	intermediatePrefix = 0x01
)

// LeafHash is the distributor program's leaf: H(0x00 ‖ H(claimant ‖ unlocked ‖ locked)).
func LeafHash(e *Entry) [32]byte {
	var buf [32 + 8 + 8]byte
	copy(buf[:32], e.Claimant[:])
	binary.LittleEndian.PutUint64(buf[32:40], e.UnlockedTotal())
	binary.LittleEndian.PutUint64(buf[40:48], e.LockedTotal())
	inner := sha256.Sum256(buf[:])
	return sha256.Sum256(append([]byte{leafPrefix}, inner[:]...))
}

// VerifyProof checks the entry's proof against root. Malformed proof
// elements fail verification.
func VerifyProof(root [32]byte, e *Entry) bool {
	node := LeafHash(e)
	for _, sibling := range e.Proof {
		if len(sibling) != 32 {
			return false
		}
		node = hashPair(node[:], sibling)
	}
	return node == root
}

func hashPair(a, b []byte) [32]byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	buf := make([]byte, 0, 1+64)
	buf = append(buf, intermediatePrefix)
	buf = append(buf, a...)
	buf = append(buf, b...)
	return sha256.Sum256(buf)
}
