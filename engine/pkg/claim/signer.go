package claim

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Signer turns an unsigned transaction into a signed one.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) (*solana.Transaction, error)
}

// KeypairSigner signs with a local private key.
type KeypairSigner struct {
	key solana.PrivateKey
}

func NewKeypairSigner(key solana.PrivateKey) *KeypairSigner {
	return &KeypairSigner{key: key}
}

// LoadKeypairSigner reads a solana-keygen JSON keypair file.
func LoadKeypairSigner(path string) (*KeypairSigner, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair: %w", err)
	}
	return NewKeypairSigner(key), nil
}

func (s *KeypairSigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignTransaction signs tx in place and returns it.
func (s *KeypairSigner) SignTransaction(_ context.Context, tx *solana.Transaction) (*solana.Transaction, error) {
	pub := s.key.PublicKey()
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &s.key
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}
